// Package sqltext はマイグレーションSQLのテキスト処理を提供する。
package sqltext

import "strings"

const commentMarker = "--"

// SplitStatements はSQLテキストを ; で分割し、前後の空白を除去したステートメントを返す。
// 空のセグメントとコメント行のみのセグメントは除外する。順序は保持する。
//
// 文字列リテラルや関数本体内の ; は考慮しない。
func SplitStatements(sql string) []string {
	segments := strings.Split(sql, ";")
	statements := make([]string, 0, len(segments))
	for _, segment := range segments {
		stmt := strings.TrimSpace(segment)
		if stmt == "" || isCommentOnly(stmt) {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

// isCommentOnly は空行を除く全行がコメントかを判定する。
func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, commentMarker) {
			return false
		}
	}
	return true
}
