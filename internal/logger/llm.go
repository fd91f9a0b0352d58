package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// PayloadLog 把建议服务的 prompt 与原始响应写到独立的 writer。
type PayloadLog struct {
	mu     sync.Mutex
	out    *log.Logger
	closer io.Closer
}

// OpenPayloadLog 以追加方式打开 path，path 为空时返回 nil。
func OpenPayloadLog(path string) (*PayloadLog, error) {
	f, err := openAppend(path)
	if err != nil || f == nil {
		return nil, err
	}
	return &PayloadLog{out: log.New(f, "", log.LstdFlags), closer: f}, nil
}

// NewPayloadLog 包装任意 writer，主要供测试使用。
func NewPayloadLog(w io.Writer) *PayloadLog {
	if w == nil {
		return nil
	}
	return &PayloadLog{out: log.New(w, "", log.LstdFlags)}
}

func (p *PayloadLog) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

type payloadSection struct {
	Title string
	Body  string
}

func (p *PayloadLog) write(kind, symbol string, sections []payloadSection) {
	if p == nil || p.out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[ADVISORY][")
	b.WriteString(kind)
	b.WriteString("]")
	if symbol != "" {
		b.WriteString("[")
		b.WriteString(symbol)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	p.mu.Lock()
	p.out.Print(b.String())
	p.mu.Unlock()
}

func (p *PayloadLog) Request(symbol, systemPrompt, userPrompt string) {
	p.write("request", symbol, []payloadSection{
		{Title: "SYSTEM", Body: systemPrompt},
		{Title: "USER", Body: userPrompt},
	})
}

func (p *PayloadLog) Response(symbol, raw string) {
	p.write("response", symbol, []payloadSection{{Title: "RAW", Body: raw}})
}
