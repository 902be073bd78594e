// Package term обеспечивает интерактивный ввод в терминале.
// Токен бота запрашивается со скрытым эхо, чтобы не оставался
// в истории терминала.
package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Prompt читает ввод оператора из терминала.
type Prompt struct {
	in      *bufio.Reader
	out     io.Writer
	stdinfd int
}

// NewPrompt создает новый экземпляр Prompt поверх стандартных потоков.
func NewPrompt() *Prompt {
	return &Prompt{
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		stdinfd: int(os.Stdin.Fd()),
	}
}

// Secret запрашивает значение со скрытым вводом.
func (p *Prompt) Secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	raw, err := term.ReadPassword(p.stdinfd)
	if err != nil {
		return "", xerrors.Errorf("failed to read secret: %w", err)
	}
	fmt.Fprintln(p.out) // Новая строка после ввода
	return strings.TrimSpace(string(raw)), nil
}

// Line запрашивает обычную строку.
func (p *Prompt) Line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return "", xerrors.Errorf("failed to read line: %w", err)
	}
	return strings.TrimSpace(line), nil
}
