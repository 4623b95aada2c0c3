package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter asks yes/no and free-form questions on the terminal. Reads are
// abandoned when the context is cancelled.
type Prompter struct {
	in        io.Reader
	out       io.Writer
	assumeYes bool

	once  sync.Once
	lines chan string
}

func NewPrompter(in io.Reader, out io.Writer, assumeYes bool) *Prompter {
	return &Prompter{in: in, out: out, assumeYes: assumeYes}
}

func (p *Prompter) start() {
	p.once.Do(func() {
		p.lines = make(chan string)
		go func() {
			defer close(p.lines)
			sc := bufio.NewScanner(p.in)
			for sc.Scan() {
				p.lines <- sc.Text()
			}
		}()
	})
}

// Ask prints question and returns the trimmed answer; ok is false on EOF or
// cancellation.
func (p *Prompter) Ask(ctx context.Context, question string) (string, bool) {
	fmt.Fprint(p.out, question)
	p.start()
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", false
	case line, ok := <-p.lines:
		if !ok {
			fmt.Fprintln(p.out)
			return "", false
		}
		return strings.TrimSpace(line), true
	}
}

// Confirm asks a yes/no question; anything but y/yes is no.
func (p *Prompter) Confirm(ctx context.Context, question string) bool {
	if p.assumeYes {
		fmt.Fprintln(p.out, question+" [y/N]: y")
		return true
	}
	ans, ok := p.Ask(ctx, question+" [y/N]: ")
	if !ok {
		return false
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true
	}
	return false
}
