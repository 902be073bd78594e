package markup

import "golang.org/x/xerrors"

// CommandKind перечисляет замкнутый набор команд редактирования.
type CommandKind int

const (
	CmdToggleBold CommandKind = iota
	CmdToggleItalic
	CmdToggleUnderline
	CmdToggleStrikethrough
	CmdToggleMonospaceBlock
	CmdInsertLink
	CmdInsertSpoiler
)

// Command — команда редактирования с необязательной полезной нагрузкой.
// URL заполняется только для CmdInsertLink.
type Command struct {
	Kind CommandKind
	URL  string
}

// Selection — непрерывный диапазон дочерних узлов корня [From, To).
type Selection struct {
	From int
	To   int
}

// Editor владеет живым деревом контента и текущим выделением.
// Команды мутируют дерево на месте; конвертер распознает результат
// мутаций (в том числе спойлер-маркер) при следующем вызове Convert.
type Editor struct {
	root *Node
	sel  Selection
}

// NewEditor создает редактор над указанным корневым узлом.
func NewEditor(root *Node) *Editor {
	if root == nil {
		root = Elem("div")
	}
	return &Editor{root: root}
}

// Root возвращает корень дерева контента.
func (e *Editor) Root() *Node {
	return e.root
}

// Select устанавливает выделение как диапазон дочерних узлов корня.
func (e *Editor) Select(from, to int) error {
	if from < 0 || to > len(e.root.Children) || from >= to {
		return xerrors.Errorf("selection [%d, %d) is out of range for %d children", from, to, len(e.root.Children))
	}
	e.sel = Selection{From: from, To: to}
	return nil
}

// Apply выполняет команду над текущим выделением.
// У каждой команды ровно один обработчик.
func (e *Editor) Apply(cmd Command) error {
	if e.sel.To == 0 {
		return xerrors.New("nothing is selected")
	}

	switch cmd.Kind {
	case CmdToggleBold:
		return e.toggleWrap("b")
	case CmdToggleItalic:
		return e.toggleWrap("i")
	case CmdToggleUnderline:
		return e.toggleWrap("u")
	case CmdToggleStrikethrough:
		return e.toggleWrap("s")
	case CmdToggleMonospaceBlock:
		return e.toggleWrap("pre")
	case CmdInsertLink:
		if cmd.URL == "" {
			return xerrors.New("link command requires a url")
		}
		e.wrapSelection(Elem("a").WithAttr("href", cmd.URL))
		return nil
	case CmdInsertSpoiler:
		// Выделение оборачивается в контейнер с явным маркером,
		// тем же, что оставляет редактируемая поверхность.
		e.wrapSelection(Elem("span").WithAttr("data-tg-spoiler", "true"))
		return nil
	default:
		return xerrors.Errorf("unknown command kind %d", cmd.Kind)
	}
}

// toggleWrap оборачивает выделение в элемент с тегом tag, а если выделен
// ровно один такой элемент — разворачивает его обратно в детей.
func (e *Editor) toggleWrap(tag string) error {
	if e.sel.To-e.sel.From == 1 {
		node := e.root.Children[e.sel.From]
		if node.Kind == ElementNode && node.Tag == tag {
			e.unwrapAt(e.sel.From)
			return nil
		}
	}
	e.wrapSelection(Elem(tag))
	return nil
}

// wrapSelection переносит выделенные узлы внутрь wrapper и ставит его
// на их место; выделение схлопывается на сам wrapper.
func (e *Editor) wrapSelection(wrapper *Node) {
	children := e.root.Children
	wrapper.Children = append(wrapper.Children, children[e.sel.From:e.sel.To]...)

	replaced := make([]*Node, 0, len(children)-(e.sel.To-e.sel.From)+1)
	replaced = append(replaced, children[:e.sel.From]...)
	replaced = append(replaced, wrapper)
	replaced = append(replaced, children[e.sel.To:]...)
	e.root.Children = replaced

	e.sel = Selection{From: e.sel.From, To: e.sel.From + 1}
}

// unwrapAt заменяет элемент на его детей.
func (e *Editor) unwrapAt(idx int) {
	node := e.root.Children[idx]
	replaced := make([]*Node, 0, len(e.root.Children)-1+len(node.Children))
	replaced = append(replaced, e.root.Children[:idx]...)
	replaced = append(replaced, node.Children...)
	replaced = append(replaced, e.root.Children[idx+1:]...)
	e.root.Children = replaced

	e.sel = Selection{From: idx, To: idx + len(node.Children)}
}
