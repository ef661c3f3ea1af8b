// Package kv is the durable string-keyed store the simulation persists through.
//
// A Set is durable once it returns. There is no transactionality beyond that; the
// simulation does read-modify-write within a single tick on one goroutine.
package kv

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"unseen.ai/internal/sim/voxel"
)

type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Lister is implemented by stores that can enumerate keys.
type Lister interface {
	Keys(prefix string) ([]string, error)
}

// Memory is an in-process Store. The zero value is not usable; call NewMemory.
type Memory struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: map[string][]byte{}}
}

func (s *Memory) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Memory) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *Memory) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *Memory) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func GetInt(s Store, key string) (int64, bool, error) {
	b, ok, err := s.Get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("kv %s: %w", key, err)
	}
	return v, true, nil
}

func SetInt(s Store, key string, v int64) error {
	return s.Set(key, []byte(strconv.FormatInt(v, 10)))
}

func GetPos(s Store, key string) (voxel.Pos, bool, error) {
	var p voxel.Pos
	ok, err := GetJSON(s, key, &p)
	return p, ok, err
}

func SetPos(s Store, key string, p voxel.Pos) error {
	return SetJSON(s, key, p)
}

// PosList returns the coordinate list stored under key (empty when absent).
func PosList(s Store, key string) ([]voxel.Pos, error) {
	var out []voxel.Pos
	if _, err := GetJSON(s, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendPos appends p to the list under key. Lists are never compacted.
func AppendPos(s Store, key string, p voxel.Pos) error {
	list, err := PosList(s, key)
	if err != nil {
		return err
	}
	return SetJSON(s, key, append(list, p))
}

func GetJSON(s Store, key string, v any) (bool, error) {
	b, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("kv %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv %s: %w", key, err)
	}
	return s.Set(key, b)
}
