package storage

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintObjects 打印对象列表
func PrintObjects(w io.Writer, objects []ObjectInfo) {
	if len(objects) == 0 {
		fmt.Fprintln(w, "没有找到任何文件")
		return
	}
	fmt.Fprintf(w, "%-60s %12s  %s\n", "名称", "大小", "修改时间")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, o := range objects {
		fmt.Fprintf(w, "%-60s %12s  %s\n", o.Key, FormatSize(o.Size), o.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// PrintStats 打印统计信息
func PrintStats(w io.Writer, name string, stats BucketStats) {
	fmt.Fprintf(w, "\n存储信息:\n")
	fmt.Fprintf(w, "名称: %s\n", name)
	fmt.Fprintf(w, "对象数量: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "总大小: %s\n", FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// PrintTree 按目录层级打印对象
func PrintTree(w io.Writer, objects []ObjectInfo) {
	children := make(map[string][]string)
	sizes := make(map[string]int64)
	for _, o := range objects {
		parts := strings.Split(o.Key, "/")
		parent := ""
		for i, part := range parts {
			path := part
			if parent != "" {
				path = parent + "/" + part
			}
			if i == len(parts)-1 {
				sizes[path] = o.Size
			}
			if !contains(children[parent], path) {
				children[parent] = append(children[parent], path)
			}
			parent = path
		}
	}
	printNode(w, children, sizes, "", 0)
}

func printNode(w io.Writer, children map[string][]string, sizes map[string]int64, node string, depth int) {
	kids := children[node]
	sort.Strings(kids)
	for _, k := range kids {
		name := k[strings.LastIndex(k, "/")+1:]
		indent := strings.Repeat("  ", depth)
		if _, isDir := children[k]; isDir {
			fmt.Fprintf(w, "%s%s/\n", indent, name)
			printNode(w, children, sizes, k, depth+1)
			continue
		}
		fmt.Fprintf(w, "%s%s (%s)\n", indent, name, FormatSize(sizes[k]))
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
