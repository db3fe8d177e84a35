package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

// lineInput 聊天 REPL 的单行输入抽象
// lineInput reads one line of chat input at a time.
type lineInput interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineInput 优先 readline（带历史与行编辑），没有可用终端时
// 退回普通 stdin 读取。返回的 error 说明 readline 为何不可用，
// 两种情况下返回的 input 都可直接使用。
// newLineInput prefers readline, with history and line editing, and
// falls back to plain stdin reads when no usable terminal exists. The
// error reports why readline was unavailable; the returned input works
// either way.
func newLineInput(historyPath string) (lineInput, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			// 历史文件是锦上添花，建不了目录就不记历史
			// History is optional; without the directory we just skip it.
			historyPath = ""
		}
	}
	instance, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
	})
	if err != nil {
		return newBasicLineInput(os.Stdin, os.Stdout), err
	}
	return &readlineInput{instance: instance}, nil
}

type readlineInput struct {
	instance *readline.Instance
}

func (r *readlineInput) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r *readlineInput) Close() error {
	return r.instance.Close()
}

// basicLineInput 无终端场景下的退路，也方便测试
// basicLineInput is the no-terminal fallback, and what tests drive.
type basicLineInput struct {
	reader *bufio.Reader
	out    io.Writer
}

func newBasicLineInput(in io.Reader, out io.Writer) *basicLineInput {
	return &basicLineInput{reader: bufio.NewReader(in), out: out}
}

func (b *basicLineInput) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineInput) Close() error { return nil }
