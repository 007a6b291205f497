package source

import (
	"bufio"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
)

// StdinSource reads log records from standard input, one per line.
type StdinSource struct {
	loggerName string

	// mu guards subscribers and stopped so Stop cannot close a channel
	// between the read loop's done check and its sends
	mu          sync.Mutex
	subscribers []chan core.LogRecord
	stopped     bool

	done           chan struct{}
	totalRecords   atomic.Uint64
	droppedRecords atomic.Uint64
	bufferSize     int
	startTime      time.Time
	lastRecordTime atomic.Value // time.Time
	logger         *log.Logger
}

// NewStdinSource creates a stdin source attributing records to loggerName.
func NewStdinSource(loggerName string, bufferSize int, logger *log.Logger) *StdinSource {
	if bufferSize < 1 {
		bufferSize = 1000
	}

	s := &StdinSource{
		loggerName:  loggerName,
		bufferSize:  bufferSize,
		subscribers: make([]chan core.LogRecord, 0),
		done:        make(chan struct{}),
		logger:      logger,
		startTime:   time.Now(),
	}
	s.lastRecordTime.Store(time.Time{})
	return s
}

func (s *StdinSource) Subscribe() <-chan core.LogRecord {
	ch := make(chan core.LogRecord, s.bufferSize)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *StdinSource) Start() error {
	go s.readLoop()
	s.logger.Info("msg", "Stdin source started", "component", "stdin_source")
	return nil
}

func (s *StdinSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.mu.Unlock()

	s.logger.Info("msg", "Stdin source stopped", "component", "stdin_source")
}

func (s *StdinSource) GetStats() SourceStats {
	lastRecord, _ := s.lastRecordTime.Load().(time.Time)

	return SourceStats{
		Type:           "stdin",
		TotalRecords:   s.totalRecords.Load(),
		DroppedRecords: s.droppedRecords.Load(),
		StartTime:      s.startTime,
		LastRecordTime: lastRecord,
		Details:        map[string]any{},
	}
}

func (s *StdinSource) readLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
			line := scanner.Text()
			if line == "" {
				continue
			}

			record := core.LogRecord{
				Time:    time.Now(),
				Level:   extractLogLevel(line),
				Logger:  s.loggerName,
				Message: line,
			}

			s.publish(record)
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("msg", "Scanner error reading stdin",
			"component", "stdin_source",
			"error", err)
	}
}

func (s *StdinSource) publish(record core.LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.totalRecords.Add(1)
	s.lastRecordTime.Store(record.Time)

	for _, ch := range s.subscribers {
		select {
		case ch <- record:
		default:
			s.droppedRecords.Add(1)
			s.logger.Debug("msg", "Dropped log record - subscriber buffer full",
				"component", "stdin_source")
		}
	}
}
