package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"xapobank-backend/internal/config"
	"xapobank-backend/internal/logger"
)

// fallbackPromoCodes keeps the first-deposit promo working when neither the
// config nor the codes file lists anything.
var fallbackPromoCodes = []string{"welcome", "first100", "xapo-h7k2m9qz"}

type promoService struct {
	mu          sync.RWMutex
	configCodes []string
	codesFile   string
}

func NewPromoService(cfg config.PromoConfig) PromoService {
	return &promoService{
		configCodes: normalizeCodes(cfg.Codes),
		codesFile:   cfg.CodesFile,
	}
}

func (s *promoService) IsAllowed(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	for _, c := range s.AllowedCodes() {
		if c == code {
			return true
		}
	}
	return false
}

// AllowedCodes merges the config allowlist with the mutable codes file.
// Config codes take precedence; the built-in fallback only kicks in when
// the config lists nothing.
func (s *promoService) AllowedCodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file := s.readFileCodes()
	if len(s.configCodes) > 0 {
		return dedupe(append(append([]string{}, s.configCodes...), file...))
	}
	if len(file) > 0 {
		return dedupe(append(file, fallbackPromoCodes...))
	}
	return append([]string{}, fallbackPromoCodes...)
}

func (s *promoService) Add(code string) ([]string, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return s.AllowedCodes(), nil
	}
	s.mu.Lock()
	codes := s.readFileCodes()
	found := false
	for _, c := range codes {
		if c == normalized {
			found = true
			break
		}
	}
	if !found {
		codes = append(codes, normalized)
	}
	err := s.writeFileCodes(codes)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.AllowedCodes(), nil
}

func (s *promoService) Remove(code string) ([]string, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return s.AllowedCodes(), nil
	}
	s.mu.Lock()
	var kept []string
	for _, c := range s.readFileCodes() {
		if c != normalized {
			kept = append(kept, c)
		}
	}
	err := s.writeFileCodes(kept)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.AllowedCodes(), nil
}

func (s *promoService) readFileCodes() []string {
	data, err := os.ReadFile(s.codesFile)
	if err != nil {
		return nil
	}
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		logger.Warn("failed to parse promo codes file", "path", s.codesFile, "error", err)
		return nil
	}
	return normalizeCodes(codes)
}

func (s *promoService) writeFileCodes(codes []string) error {
	if err := os.MkdirAll(filepath.Dir(s.codesFile), 0o755); err != nil {
		return err
	}
	clean := dedupe(normalizeCodes(codes))
	sort.Strings(clean)
	data, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.codesFile, data, 0o644)
}

func normalizeCodes(codes []string) []string {
	var out []string
	for _, c := range codes {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	var out []string
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
