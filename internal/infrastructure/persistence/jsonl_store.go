package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"remoteinfer/internal/domain/conversation"
	"remoteinfer/internal/utils/platformerrors"
)

// jsonl lines can carry large base64 image payloads.
const maxLineBytes = 64 * 1024 * 1024

// JSONLStore reads and writes conversations as newline-delimited JSON, one
// conversation per line.
type JSONLStore struct {
	mu sync.Mutex
}

// NewJSONLStore creates a conversation store.
func NewJSONLStore() *JSONLStore {
	return &JSONLStore{}
}

// ReadConversations loads every conversation from a JSONL file.
func (s *JSONLStore) ReadConversations(path string) ([]conversation.Conversation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, platformerrors.AsError(platformerrors.LayerInfrastructure, err, "open conversations file")
	}
	defer file.Close()

	var conversations []conversation.Conversation
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var conv conversation.Conversation
		if err := json.Unmarshal(line, &conv); err != nil {
			return nil, platformerrors.NewError(platformerrors.LayerInfrastructure, platformerrors.ErrorTypePersistence, fmt.Sprintf("parse %s line %d", path, lineNo), err)
		}
		conversations = append(conversations, conv)
	}
	if err := scanner.Err(); err != nil {
		return nil, platformerrors.AsError(platformerrors.LayerInfrastructure, err, "read conversations file")
	}
	return conversations, nil
}

// WriteConversations writes the full conversation set to path, replacing any
// existing content. Parent directories are created as needed.
func (s *JSONLStore) WriteConversations(path string, conversations []conversation.Conversation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "create output directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "create output file")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, conv := range conversations {
		if err := encoder.Encode(conv); err != nil {
			return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "encode conversation")
		}
	}
	if err := writer.Flush(); err != nil {
		return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "flush output file")
	}
	return nil
}

// AppendConversation appends one conversation to the scratch file derived
// from outputPath. It implements the engine's scratch sink: partial progress
// survives an aborted run. Appends are serialized so concurrent completions
// do not interleave lines.
func (s *JSONLStore) AppendConversation(outputPath string, conv conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := ScratchPath(outputPath)
	if err := os.MkdirAll(filepath.Dir(scratch), 0o755); err != nil {
		return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "create scratch directory")
	}
	file, err := os.OpenFile(scratch, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "open scratch file")
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(conv); err != nil {
		return platformerrors.AsError(platformerrors.LayerInfrastructure, err, "append conversation")
	}
	return nil
}

// ScratchPath places partial results under a scratch directory next to the
// final output file.
func ScratchPath(outputPath string) string {
	dir, name := filepath.Split(outputPath)
	return filepath.Join(dir, "scratch", name)
}
