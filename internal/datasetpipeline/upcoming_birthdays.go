// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datasetpipeline

import (
	"context"
	"sort"
	"time"

	"github.com/JPMarichal/ccmwf/internal/models"
)

// UpcomingBirthdaysPipeline groups active missionaries whose next
// birthday falls within (today, today+WindowDays] by month then day,
// preserving a stable within-day order by treatment then name.
//
// Grounded on original_source's UpcomingBirthdayPipeline (allow_empty,
// unique_fields on (missionary_id, missionary_name, birthday)).
type UpcomingBirthdaysPipeline struct {
	Repo       Repository
	BranchID   int
	WindowDays int
	Now        func() time.Time
}

func (p *UpcomingBirthdaysPipeline) DatasetID() string { return "upcoming_birthdays" }

func (p *UpcomingBirthdaysPipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p *UpcomingBirthdaysPipeline) Load(ctx context.Context) ([]models.MissionaryRecord, error) {
	return p.Repo.FetchActiveByBranch(ctx, p.BranchID)
}

func (p *UpcomingBirthdaysPipeline) Validate(rows []models.MissionaryRecord) error {
	return nil // allow_empty
}

type birthdayEntry struct {
	record    models.MissionaryRecord
	nextBirth time.Time
	age       int
}

func (p *UpcomingBirthdaysPipeline) Transform(rows []models.MissionaryRecord) (any, int, error) {
	today := truncateToDate(p.now())
	windowEnd := today.AddDate(0, 0, p.WindowDays)

	var entries []birthdayEntry
	for _, r := range rows {
		if !r.Active || r.BirthDate == "" {
			continue
		}
		birth, ok := parseISODate(r.BirthDate)
		if !ok {
			continue
		}
		next, age := nextBirthday(birth, today)
		if !next.After(today) || next.After(windowEnd) {
			continue
		}
		entries = append(entries, birthdayEntry{record: r, nextBirth: next, age: age})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.nextBirth.Month() != b.nextBirth.Month() {
			return a.nextBirth.Month() < b.nextBirth.Month()
		}
		if a.nextBirth.Day() != b.nextBirth.Day() {
			return a.nextBirth.Day() < b.nextBirth.Day()
		}
		if a.record.Treatment != b.record.Treatment {
			return a.record.Treatment < b.record.Treatment
		}
		return a.record.Name < b.record.Name
	})

	birthdays := make([]models.UpcomingBirthday, 0, len(entries))
	for _, e := range entries {
		birthdays = append(birthdays, models.UpcomingBirthday{
			MissionaryID:      e.record.ID,
			BranchID:          e.record.BranchIDNum,
			District:          e.record.District,
			Treatment:         e.record.Treatment,
			MissionaryName:    e.record.Name,
			Birthday:          e.nextBirth.Format("2006-01-02"),
			AgeTurning:        e.age,
			EmailMissionary:   e.record.MissionEmail,
			EmailPersonal:     e.record.PersonalEmail,
			ThreeWeeksProgram: e.record.ThreeWeeks,
		})
	}

	return birthdays, len(birthdays), nil
}

// nextBirthday returns the next occurrence of birth's month/day on or
// after today, plus the age the missionary turns on that date. A
// birthday on today itself is still "next" (the (today, today+N] window
// excludes it at the caller, not here).
func nextBirthday(birth, today time.Time) (time.Time, int) {
	candidate := time.Date(today.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	age := today.Year() - birth.Year()
	if candidate.Before(today) {
		candidate = candidate.AddDate(1, 0, 0)
		age++
	}
	return candidate, age
}
