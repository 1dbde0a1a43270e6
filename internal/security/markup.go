// Package security はアプリケーションのセキュリティ機能を提供する。
//
// 投稿されたシークレットのマークアップ検出、外部IdP呼び出し用のSSRF防止HTTPクライアント、
// OAuth stateの署名と検証を含む。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetector はシークレット本文にHTMLマークアップが含まれるかを判定するインターフェース。
// 本文は書き換えない。表示時のエスケープはテンプレートが行う。
type MarkupDetector interface {
	ContainsMarkup(raw string) bool
}

// markupDetector はbluemondayのStrictPolicyによるMarkupDetectorの実装。
// ポリシーはスレッドセーフなので共有してよい。
type markupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はMarkupDetectorを生成する。
func NewMarkupDetector() *markupDetector {
	return &markupDetector{policy: bluemonday.StrictPolicy()}
}

// ContainsMarkup はStrictPolicyで除去される部分があればtrueを返す。
// StrictPolicyはテキストをエスケープし改行をLFに正規化するため、両辺を揃えてから比較する。
func (d *markupDetector) ContainsMarkup(raw string) bool {
	if !strings.ContainsAny(raw, "<>") {
		return false
	}
	stripped := html.UnescapeString(d.policy.Sanitize(raw))
	return stripped != normalizeText(raw)
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func normalizeText(s string) string {
	return newlineReplacer.Replace(html.UnescapeString(s))
}
