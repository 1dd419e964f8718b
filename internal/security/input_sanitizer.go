// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizerService はトラッキングAPIがクライアントから受け取る
// 自由入力文字列（プロバイダ名、ウォレットアドレス、エラーメッセージ、
// リファラ等）をサニタイズし、それらを表示するダッシュボードを
// XSS攻撃から保護する。bluemondayのStrictPolicyにより
// すべてのマークアップを除去する。
package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 自由入力フィールドの最大長。これを超える入力は切り詰める。
const maxFieldLength = 512

// InputSanitizerService はクライアント入力文字列のサニタイズ機能の
// インターフェースを定義する。トラッキング記録の保存前に使用される。
type InputSanitizerService interface {
	// SanitizeField は入力文字列からすべてのHTMLタグを除去し、
	// 前後の空白を取り除いた文字列を返す。
	// 最大長を超える入力は切り詰められる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeField(raw string) string
}

// inputSanitizer はInputSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type inputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer はInputSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはいかなるタグ・属性も許可せず、テキストのみを通過させる。
func NewInputSanitizer() *inputSanitizer {
	return &inputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeField は入力文字列からすべてのHTMLタグを除去して返す。
func (s *inputSanitizer) SanitizeField(raw string) string {
	cleaned := strings.TrimSpace(s.policy.Sanitize(raw))
	if len(cleaned) > maxFieldLength {
		// マルチバイト文字の途中で切らないよう、ルーン境界まで戻す
		cut := maxFieldLength
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
	}
	return cleaned
}
