package ui

import (
	"fmt"
	"io"
	"sync"
)

const destinationAnnouncementTemplateConstant = "Backing-up to %s\n"

type flusher interface {
	Flush() error
}

// ConsoleOutput writes user-facing text. Buffered writers are flushed after every write so the
// destination line is visible before a long capture starts.
type ConsoleOutput struct {
	writer io.Writer
	mutex  sync.Mutex
}

// NewConsoleOutput wraps writer. A nil writer discards output.
func NewConsoleOutput(writer io.Writer) *ConsoleOutput {
	if existing, alreadyWrapped := writer.(*ConsoleOutput); alreadyWrapped {
		return existing
	}
	if writer == nil {
		writer = io.Discard
	}
	return &ConsoleOutput{writer: writer}
}

// Write implements io.Writer.
func (output *ConsoleOutput) Write(data []byte) (int, error) {
	output.mutex.Lock()
	defer output.mutex.Unlock()

	bytesWritten, writeError := output.writer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	if flushableWriter, flushable := output.writer.(flusher); flushable {
		if flushError := flushableWriter.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}
	return bytesWritten, nil
}

// AnnounceDestination prints the archive path a run is about to write.
func (output *ConsoleOutput) AnnounceDestination(destinationPath string) error {
	_, writeError := fmt.Fprintf(output, destinationAnnouncementTemplateConstant, destinationPath)
	return writeError
}
