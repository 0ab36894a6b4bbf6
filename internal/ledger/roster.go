package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"evquota/internal/models"
)

// Roster CSV header names as exported by the administration spreadsheet.
const (
	colIDTag     = "id_tag"
	colFirstName = "header name"
	colSurname   = "surname"
	colQuota     = "quota_kwh"
	colUnlimited = "unlimited"
)

// LoadRoster reads the user roster CSV at path.
func LoadRoster(path string, logger *zap.Logger) (map[string]models.User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open roster: %w", err)
	}
	defer f.Close()
	return ParseRoster(f, logger)
}

// ParseRoster decodes roster rows. Rows without a tag or with an unreadable quota are
// skipped and logged; a limited user without a quota is kept with a nil quota.
func ParseRoster(r io.Reader, logger *zap.Logger) (map[string]models.User, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]models.User{}, nil
		}
		return nil, fmt.Errorf("ledger: read roster header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := index[colIDTag]; !ok {
		return nil, fmt.Errorf("ledger: roster is missing %q column", colIDTag)
	}

	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	users := make(map[string]models.User)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ledger: read roster line %d: %w", line, err)
		}

		tag := field(row, colIDTag)
		if tag == "" {
			continue
		}

		user := models.User{
			IDTag:     tag,
			FirstName: field(row, colFirstName),
			Surname:   field(row, colSurname),
			Plan:      models.PlanLimited,
		}
		if strings.EqualFold(field(row, colUnlimited), "TRUE") {
			user.Plan = models.PlanUnlimited
		}

		if user.Plan == models.PlanLimited {
			raw := field(row, colQuota)
			if raw == "" {
				logger.Warn("limited user has no quota, blocking", zap.String("id_tag", tag))
			} else {
				quota, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					logger.Warn("skipping roster row with invalid quota",
						zap.String("id_tag", tag), zap.String("quota_kwh", raw), zap.Int("line", line))
					continue
				}
				user.QuotaKWh = &quota
			}
		}

		users[tag] = user
	}

	return users, nil
}
