package utils

import (
	"io"
	"net/http"

	"github.com/simplegpt/backend/internal/stream"
)

// SetupStreamHeaders 设置流式响应头，并声明分片格式
func SetupStreamHeaders(w http.ResponseWriter, format stream.Format) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(stream.HeaderFormat, string(format))
}

// FragmentWriter 按格式写出文本分片，每次写入后立即刷新
type FragmentWriter struct {
	w       io.Writer
	flusher http.Flusher
	format  stream.Format
}

// NewFragmentWriter 创建分片写入器
func NewFragmentWriter(w io.Writer, flusher http.Flusher, format stream.Format) *FragmentWriter {
	return &FragmentWriter{w: w, flusher: flusher, format: format}
}

// Write 写出一个分片
func (f *FragmentWriter) Write(fragment string) error {
	var err error
	if f.format == stream.FormatEvents {
		err = stream.WriteFrame(f.w, fragment, "")
	} else {
		_, err = io.WriteString(f.w, fragment)
	}
	if err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}

// Finish 写出结束标记；原始文本格式依靠关闭连接结束
func (f *FragmentWriter) Finish() error {
	if f.format != stream.FormatEvents {
		return nil
	}
	if err := stream.WriteFrame(f.w, "", "stop"); err != nil {
		return err
	}
	if err := stream.WriteDone(f.w); err != nil {
		return err
	}
	f.flusher.Flush()
	return nil
}
