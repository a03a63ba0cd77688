package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

// Producer appends records to a JSON lines file.
type Producer struct {
	File    *os.File
	encoder *json.Encoder
}

// Consumer reads records from a JSON lines file.
type Consumer struct {
	File    *os.File
	decoder *json.Decoder
}

// NewProducer opens fileName for appending, creating it if needed.
func NewProducer(fileName string) (*Producer, error) {
	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Producer{
		File:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

// WriteRecord appends one record.
func (p *Producer) WriteRecord(rec *Record) error {
	return p.encoder.Encode(rec)
}

// NewConsumer opens fileName for reading, creating it if needed.
func NewConsumer(fileName string) (*Consumer, error) {
	file, err := os.OpenFile(fileName, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		File:    file,
		decoder: json.NewDecoder(file),
	}, nil
}

// ReadRecord returns the next record or io.EOF.
func (c *Consumer) ReadRecord() (*Record, error) {
	rec := &Record{}
	if err := c.decoder.Decode(rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// FileStore is a Store backed by a JSON lines file.
type FileStore struct {
	mu       sync.Mutex
	fileName string
}

// NewFileStore returns a FileStore writing to fileName.
func NewFileStore(fileName string) *FileStore {
	return &FileStore{fileName: fileName}
}

// each calls fn for every record in the file until fn returns false.
func (store *FileStore) each(fn func(rec *Record) bool) error {
	consumer, err := NewConsumer(store.fileName)
	if err != nil {
		return err
	}
	defer func() { _ = consumer.File.Close() }()

	for {
		rec, err := consumer.ReadRecord()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !fn(rec) {
			return nil
		}
	}
}

// Save appends rec unless its serial is already recorded.
func (store *FileStore) Save(_ context.Context, rec *Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	exists, err := store.hasSerial(rec.Serial)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateSerial
	}

	prepare(rec)

	producer, err := NewProducer(store.fileName)
	if err != nil {
		return err
	}
	if err := producer.WriteRecord(rec); err != nil {
		_ = producer.File.Close()
		return err
	}
	return producer.File.Close()
}

// HasSerial reports whether serial is recorded in the file.
func (store *FileStore) HasSerial(_ context.Context, serial string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.hasSerial(serial)
}

func (store *FileStore) hasSerial(serial string) (bool, error) {
	found := false
	err := store.each(func(rec *Record) bool {
		found = rec.Serial == serial
		return !found
	})
	return found, err
}

// List returns the records of requester, or all records if requester is empty.
func (store *FileStore) List(_ context.Context, requester string) ([]Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var records []Record
	err := store.each(func(rec *Record) bool {
		if requester == "" || rec.Requester == requester {
			records = append(records, *rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Ping checks that the ledger file can be opened.
func (store *FileStore) Ping(_ context.Context) error {
	consumer, err := NewConsumer(store.fileName)
	if err != nil {
		return err
	}
	return consumer.File.Close()
}
