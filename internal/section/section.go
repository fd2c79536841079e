// Package section 提供按点分路径读写的层级文档，文本形式为 YAML。
//
// 文档基于 yaml.v3 的节点树实现，保留键的原始顺序与手工编辑时的注释，
// 删除子树（例如整个 mail 段）后重新写出时不会残留旧键。
package section

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrPathNotFound 路径不存在
	ErrPathNotFound = errors.New("section path not found")
	// ErrTypeMismatch 路径存在但类型不符
	ErrTypeMismatch = errors.New("section value type mismatch")
)

const (
	strTag  = "!!str"
	boolTag = "!!bool"
	intTag  = "!!int"
	nullTag = "!!null"
)

// Section 一个层级文档，根节点总是映射。非并发安全，由调用方串行使用。
type Section struct {
	root *yaml.Node
}

// New 创建空文档
func New() *Section {
	return &Section{root: newMapping()}
}

// Parse 解析 YAML 文本，空文本得到空文档
func Parse(data []byte) (*Section, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse section: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return New(), nil
	}
	root := deref(doc.Content[0])
	if isNull(root) {
		return New(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse section: root is not a mapping: %w", ErrTypeMismatch)
	}
	return &Section{root: root}, nil
}

// Marshal 写出 YAML 文本
func (s *Section) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s.root); err != nil {
		return nil, fmt.Errorf("marshal section: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal section: %w", err)
	}
	return buf.Bytes(), nil
}

// Clone 深拷贝
func (s *Section) Clone() *Section {
	return &Section{root: cloneNode(s.root)}
}

// Contains 路径是否存在
func (s *Section) Contains(path string) bool {
	_, err := s.lookup(path)
	return err == nil
}

// GetString 读取标量，null 读作空串
func (s *Section) GetString(path string) (string, error) {
	n, err := s.lookup(path)
	if err != nil {
		return "", err
	}
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("%s: %w", path, ErrTypeMismatch)
	}
	if isNull(n) {
		return "", nil
	}
	return n.Value, nil
}

// GetStringList 读取字符串列表，null 读作空列表
func (s *Section) GetStringList(path string) ([]string, error) {
	n, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	if isNull(n) {
		return []string{}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%s: %w", path, ErrTypeMismatch)
	}
	out := make([]string, 0, len(n.Content))
	for i, item := range n.Content {
		item = deref(item)
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, ErrTypeMismatch)
		}
		out = append(out, item.Value)
	}
	return out, nil
}

// GetBool 读取布尔值
func (s *Section) GetBool(path string) (bool, error) {
	v, err := s.GetString(path)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on":
		return true, nil
	case "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: bool %q: %w", path, v, ErrTypeMismatch)
}

// Keys 列出路径下的子键，保持文件中的顺序。空路径表示根。
func (s *Section) Keys(path string) ([]string, error) {
	n, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	if isNull(n) {
		return []string{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: %w", path, ErrTypeMismatch)
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys, nil
}

// Set 写入值，必要时创建中间映射。
//
// 支持 string、bool、int、int64、[]string；value 为 nil 时删除该路径。
func (s *Section) Set(path string, value any) error {
	if value == nil {
		s.remove(path)
		return nil
	}
	n, err := valueNode(value)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return s.put(path, n)
}

// CreateSection 在路径处放置一个空映射，已有内容被替换
func (s *Section) CreateSection(path string) error {
	return s.put(path, newMapping())
}

func (s *Section) lookup(path string) (*yaml.Node, error) {
	cur := s.root
	if path == "" {
		return cur, nil
	}
	for _, key := range strings.Split(path, ".") {
		cur = deref(cur)
		if cur.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s: %w", path, ErrPathNotFound)
		}
		i := indexOfKey(cur, key)
		if i < 0 {
			return nil, fmt.Errorf("%s: %w", path, ErrPathNotFound)
		}
		cur = cur.Content[i+1]
	}
	return deref(cur), nil
}

func (s *Section) put(path string, value *yaml.Node) error {
	if path == "" {
		if value.Kind != yaml.MappingNode {
			return fmt.Errorf("root: %w", ErrTypeMismatch)
		}
		s.root = value
		return nil
	}
	keys := strings.Split(path, ".")
	cur := s.root
	for _, key := range keys[:len(keys)-1] {
		i := indexOfKey(cur, key)
		if i < 0 {
			child := newMapping()
			cur.Content = append(cur.Content, keyNode(key), child)
			cur = child
			continue
		}
		child := deref(cur.Content[i+1])
		if child.Kind != yaml.MappingNode {
			child = newMapping()
			cur.Content[i+1] = child
		}
		cur = child
	}
	last := keys[len(keys)-1]
	if i := indexOfKey(cur, last); i >= 0 {
		// 保留原值节点上的注释
		old := cur.Content[i+1]
		value.HeadComment, value.LineComment, value.FootComment = old.HeadComment, old.LineComment, old.FootComment
		cur.Content[i+1] = value
		return nil
	}
	cur.Content = append(cur.Content, keyNode(last), value)
	return nil
}

func (s *Section) remove(path string) {
	if path == "" {
		s.root = newMapping()
		return
	}
	keys := strings.Split(path, ".")
	parent, err := s.lookup(strings.Join(keys[:len(keys)-1], "."))
	if err != nil || parent.Kind != yaml.MappingNode {
		return
	}
	if i := indexOfKey(parent, keys[len(keys)-1]); i >= 0 {
		parent.Content = append(parent.Content[:i], parent.Content[i+2:]...)
	}
}

func valueNode(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case string:
		return scalar(strTag, v), nil
	case bool:
		return scalar(boolTag, strconv.FormatBool(v)), nil
	case int:
		return scalar(intTag, strconv.Itoa(v)), nil
	case int64:
		return scalar(intTag, strconv.FormatInt(v, 10)), nil
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(v) == 0 {
			seq.Style = yaml.FlowStyle
		}
		for _, item := range v {
			seq.Content = append(seq.Content, scalar(strTag, item))
		}
		return seq, nil
	case *Section:
		return cloneNode(v.root), nil
	}
	return nil, fmt.Errorf("unsupported value %T: %w", value, ErrTypeMismatch)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: key}
}

func newMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func indexOfKey(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == nullTag
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	n = deref(n)
	cp := *n
	cp.Alias = nil
	if n.Content != nil {
		cp.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			cp.Content[i] = cloneNode(c)
		}
	}
	return &cp
}
