package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Hooolee/novel-splitter/model"
)

// FileTree lists dir recursively: every directory, plus .txt and .json
// files. Each level holds directories first, then files, by name. A missing
// dir yields an empty tree.
func FileTree(dir string) ([]*model.FileNode, error) {
	if _, err := os.Stat(dir); err != nil {
		return []*model.FileNode{}, nil
	}
	return readDir(dir, ""), nil
}

func readDir(base, rel string) []*model.FileNode {
	nodes := make([]*model.FileNode, 0)
	entries, err := os.ReadDir(filepath.Join(base, rel))
	if err != nil {
		return nodes
	}
	for _, entry := range entries {
		name := entry.Name()
		childRel := filepath.Join(rel, name)
		isDir := entry.IsDir()
		if !isDir {
			ext := strings.TrimPrefix(filepath.Ext(name), ".")
			if ext != "txt" && ext != "json" {
				continue
			}
		}
		node := &model.FileNode{
			Name:     name,
			Path:     childRel,
			IsDir:    isDir,
			Children: make([]*model.FileNode, 0),
		}
		if isDir {
			node.Children = readDir(base, childRel)
		}
		nodes = append(nodes, node)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsDir != nodes[j].IsDir {
			return nodes[i].IsDir
		}
		return nodes[i].Name < nodes[j].Name
	})
	return nodes
}
