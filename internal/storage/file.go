package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

// FileStore keeps partitions as {dir}/{YYYYMMDD}.csv with the columns
// unixtime,open,high,low,close,volume.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// DefaultDir is the partition directory used when none is given:
// ./{exchange}/{symbol}/ohlcv/{period}.
func DefaultDir(exchange, symbol, period string) string {
	return filepath.Join(".", exchange, symbol, "ohlcv", period)
}

func (s *FileStore) Dir() string { return s.dir }

// Path is the partition file of day.
func (s *FileStore) Path(day time.Time) string {
	return filepath.Join(s.dir, DayName(day)+".csv")
}

func (s *FileStore) Exists(day time.Time) (bool, error) {
	info, err := os.Stat(s.Path(day))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.New(apperrors.ErrorTypeIO, component, "exists", err)
	}
	return !info.IsDir(), nil
}

// Write stores candles for day through a temporary file so a partition is
// never left half written.
func (s *FileStore) Write(day time.Time, candles []models.Candle) error {
	path := s.Path(day)
	tmp := filepath.Join(s.dir, "."+DayName(day)+"."+uuid.NewString()+".tmp")
	if err := table.FromCandles(candles, true).WriteCSVFile(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.New(apperrors.ErrorTypeIO, component, "write", err)
	}
	return nil
}

func (s *FileStore) Read(day time.Time) ([]models.Candle, error) {
	f, err := table.ReadCSVFile(s.Path(day))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, missingPartition(day)
	}
	if err != nil {
		return nil, err
	}
	return f.ToCandles()
}

// Days lists the partition files in the directory. Other files are ignored.
func (s *FileStore) Days() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeIO, component, "days", err)
	}
	var days []time.Time
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".csv")
		if e.IsDir() || !ok || len(name) != 8 {
			continue
		}
		day, err := time.Parse("20060102", name)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}
