package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"relay-im/tools"
	"relay-im/transport"
	"time"

	"github.com/gookit/color"
	"golang.org/x/sync/errgroup"
)

var (
	errServerClosed = errors.New("disconnected from server")
	errInputClosed  = errors.New("input closed")
)

// chat runs the send and receive flows over stream until one of them hits a
// terminal condition. Both flows have returned when chat returns; closing the
// stream is left to the caller.
func chat(ctx context.Context, stream transport.Stream, name string, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	// 标准输入无法被中断 读行协程只负责投递 不接触连接
	go scanLines(in, lines, done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sendFlow(gctx, stream, name, lines, out)
	})
	g.Go(func() error {
		return receiveFlow(gctx, stream, out)
	})
	g.Go(func() error {
		<-gctx.Done()
		// 解除接收协程的阻塞读
		return stream.SetReadDeadline(time.Now())
	})

	err := g.Wait()
	switch {
	case errors.Is(err, tools.ErrQuit), errors.Is(err, errInputClosed):
		return nil
	case errors.Is(err, errServerClosed):
		fmt.Fprintln(out, "\n"+color.Yellow.Sprint("Disconnected from server"))
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

func scanLines(in io.Reader, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
}

func sendFlow(ctx context.Context, stream transport.Stream, name string, lines <-chan string, out io.Writer) error {
	if name != "" {
		if _, err := stream.Write([]byte(name)); err != nil {
			return fmt.Errorf("sending name: %w", err)
		}
		fmt.Fprintln(out, "\nStart chatting (type '"+color.Cyan.Sprint("quit")+"' to exit):")
	}
	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return errInputClosed
			}
			line = l
		}
		msg, err := tools.ParseInput(line)
		if errors.Is(err, tools.ErrEmpty) {
			continue
		}
		if err != nil {
			return err
		}
		if _, err = stream.Write([]byte(msg)); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
}

func receiveFlow(ctx context.Context, stream transport.Stream, out io.Writer) error {
	buf := make([]byte, transport.ReadBufferSize)
	for {
		chunk, err := transport.ReadChunk(stream, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errServerClosed
		}
		// 清除当前输入行后显示
		fmt.Fprintf(out, "\r\033[K%s\n%s", chunk, color.Green.Sprint("You: "))
	}
}
