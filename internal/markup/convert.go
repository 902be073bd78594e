// Package markup конвертирует дерево редактируемого контента в ограниченное
// подмножество HTML-разметки, которое принимает Telegram Bot API.
package markup

import "strings"

// Formatted — результат конвертации: строка разметки в словаре тегов
// Telegram и плоское текстовое превью без тегов.
type Formatted struct {
	HTML    string
	Preview string
}

// IsEmpty сообщает, что после конвертации не осталось содержимого.
func (f Formatted) IsEmpty() bool {
	return f.HTML == ""
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// Convert выполняет детерминированный обход дерева в глубину и возвращает
// разметку. Неподдерживаемое оформление отбрасывается целиком: незнакомый
// элемент отдает наружу только сконвертированных детей. Конвертация не
// имеет побочных эффектов и не трогает само дерево.
func Convert(root *Node) Formatted {
	return Formatted{
		HTML:    strings.TrimSpace(convertNode(root)),
		Preview: strings.TrimSpace(flatten(root)),
	}
}

func convertNode(n *Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == TextNode {
		return textEscaper.Replace(n.Text)
	}

	var b strings.Builder
	for _, child := range n.Children {
		b.WriteString(convertNode(child))
	}
	inner := b.String()

	// Порядок проверок повторяет приоритет стилей на редактируемой
	// поверхности: явный тег или эквивалентное стилевое свойство.
	tag := strings.ToLower(n.Tag)
	switch {
	case tag == "b" || tag == "strong" || n.Style["font-weight"] == "bold":
		return "<b>" + inner + "</b>"
	case tag == "i" || tag == "em" || n.Style["font-style"] == "italic":
		return "<i>" + inner + "</i>"
	case tag == "u" || strings.Contains(n.Style["text-decoration"], "underline"):
		return "<u>" + inner + "</u>"
	case tag == "s" || tag == "strike" || strings.Contains(n.Style["text-decoration"], "line-through"):
		return "<s>" + inner + "</s>"
	case tag == "code":
		return "<code>" + inner + "</code>"
	case tag == "pre":
		return "<pre>" + inner + "</pre>"
	case n.Attr["data-tg-spoiler"] == "true" || tag == "tg-spoiler":
		// Спойлер распознается только по явному маркеру, а не по оформлению.
		return "<tg-spoiler>" + inner + "</tg-spoiler>"
	case tag == "a" && n.Attr["href"] != "":
		return `<a href="` + attrEscaper.Replace(n.Attr["href"]) + `">` + inner + "</a>"
	case tag == "div" || tag == "p":
		return "\n" + inner
	case tag == "br":
		return "\n"
	default:
		// Ссылка без href и любой незнакомый элемент деградируют
		// до собственного содержимого.
		return inner
	}
}

// flatten собирает плоский текст дерева: теги отбрасываются, блочные
// элементы и переносы строк дают перевод строки.
func flatten(n *Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == TextNode {
		return n.Text
	}

	var b strings.Builder
	tag := strings.ToLower(n.Tag)
	if tag == "div" || tag == "p" || tag == "br" {
		b.WriteString("\n")
	}
	for _, child := range n.Children {
		b.WriteString(flatten(child))
	}
	return b.String()
}
