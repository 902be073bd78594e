package markup

import "encoding/json"

// NodeKind определяет тип узла дерева контента.
type NodeKind int

const (
	// TextNode — текстовый лист без дочерних узлов.
	TextNode NodeKind = iota
	// ElementNode — элемент с тегом и упорядоченными дочерними узлами.
	ElementNode
)

// Node представляет узел дерева редактируемой поверхности: либо текстовый
// лист, либо элемент со стилевой подсказкой и дочерними узлами. Дерево
// существует только на время редактирования и конвертации, оно нигде
// не сохраняется.
type Node struct {
	Kind     NodeKind          `json:"-"`
	Text     string            `json:"text,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Attr     map[string]string `json:"attr,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Children []*Node           `json:"children,omitempty"`
}

// UnmarshalJSON восстанавливает вид узла по заполненным полям: узел с
// тегом или дочерними узлами считается элементом, остальные текстом.
func (n *Node) UnmarshalJSON(data []byte) error {
	type alias Node
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*n = Node(a)
	if n.Tag != "" || len(n.Children) > 0 {
		n.Kind = ElementNode
	} else {
		n.Kind = TextNode
	}
	return nil
}

// Text создает текстовый лист.
func Text(s string) *Node {
	return &Node{Kind: TextNode, Text: s}
}

// Elem создает элемент с указанным тегом и дочерними узлами.
func Elem(tag string, children ...*Node) *Node {
	return &Node{Kind: ElementNode, Tag: tag, Children: children}
}

// WithAttr устанавливает атрибут элемента и возвращает тот же узел,
// что позволяет строить деревья цепочками вызовов.
func (n *Node) WithAttr(key, value string) *Node {
	if n.Attr == nil {
		n.Attr = make(map[string]string)
	}
	n.Attr[key] = value
	return n
}

// WithStyle устанавливает стилевое свойство элемента.
func (n *Node) WithStyle(prop, value string) *Node {
	if n.Style == nil {
		n.Style = make(map[string]string)
	}
	n.Style[prop] = value
	return n
}
