package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// SaveFile 把 r 的内容写入 dst，返回写入字节数
func SaveFile(r io.Reader, dst string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("创建目录失败: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}

	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("保存文件失败: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("保存文件失败: %w", err)
	}
	return n, nil
}

// SanitizeName keeps the base name of an uploaded file with only safe characters.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}

// Stem 去掉扩展名
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ext 返回小写扩展名
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// RemoveStaleDirs 删除 base 下修改时间早于 now-ttl 的子目录，返回删除的目录名。
// skip 返回 true 的目录无论多旧都保留，可以为 nil
func RemoveStaleDirs(base string, ttl time.Duration, now time.Time, skip func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	var removed []string
	cutoff := now.Add(-ttl)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if skip != nil && skip(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(base, e.Name())); err != nil {
			return removed, fmt.Errorf("删除目录 %s 失败: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
