package sla_test

import (
	"protocolo/domain/sla"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeDueDate(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should add calendar days", func(t *testing.T) {
		c := sla.DefaultCalculator()
		Expect(c.ComputeDueDate(utc("2024-01-01T00:00:00Z"), 5)).To(BeTemporally("==", utc("2024-01-06T00:00:00Z")))
		Expect(c.ComputeDueDate(utc("2024-02-27T10:30:00Z"), 3)).To(BeTemporally("==", utc("2024-03-01T10:30:00Z")))
		Expect(c.ComputeDueDate(utc("2024-01-01T00:00:00Z"), 0)).To(BeTemporally("==", utc("2024-01-01T00:00:00Z")))
	})

	t.Run("should count days in the tenant time zone", func(t *testing.T) {
		c, err := sla.NewCalculator(sla.Config{TimeZone: "America/Sao_Paulo", DueSoonHours: 24})
		Expect(err).To(BeNil())
		createdAt := utc("2024-01-01T02:00:00Z")
		due := c.ComputeDueDate(createdAt, 1)
		Expect(due).To(BeTemporally("==", utc("2024-01-02T02:00:00Z")))
		Expect(due.Location()).To(Equal(time.UTC))
	})

	t.Run("should skip weekends and holidays with business days", func(t *testing.T) {
		c, err := sla.NewCalculator(sla.Config{DayStrategy: sla.StrategyBusiness, Holidays: []string{"2024-01-08"}})
		Expect(err).To(BeNil())
		Expect(c.Strategy.Name()).To(Equal("business"))
		// friday + 2 business days, monday is a holiday
		Expect(c.ComputeDueDate(utc("2024-01-05T09:00:00Z"), 2)).To(BeTemporally("==", utc("2024-01-10T09:00:00Z")))
		// saturday + 1 business day
		Expect(c.ComputeDueDate(utc("2024-01-13T09:00:00Z"), 1)).To(BeTemporally("==", utc("2024-01-15T09:00:00Z")))
	})

	t.Run("zero value calculator counts calendar days in utc", func(t *testing.T) {
		c := &sla.Calculator{}
		Expect(c.ComputeDueDate(utc("2024-01-01T00:00:00Z"), 5)).To(BeTemporally("==", utc("2024-01-06T00:00:00Z")))
	})

	t.Run("due date should never be before creation", func(t *testing.T) {
		c := sla.DefaultCalculator()
		createdAt := utc("2024-03-10T23:59:59Z")
		for days := 0; days < 40; days++ {
			Expect(c.ComputeDueDate(createdAt, days).Before(createdAt)).To(BeFalse())
		}
	})
}

func TestNewCalculator(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should reject invalid settings", func(t *testing.T) {
		_, err := sla.NewCalculator(sla.Config{TimeZone: "Mars/Olympus"})
		Expect(err).To(HaveOccurred())
		_, err = sla.NewCalculator(sla.Config{DayStrategy: "lunar"})
		Expect(err).To(MatchError(`unknown sla day strategy "lunar"`))
		_, err = sla.NewCalculator(sla.Config{DayStrategy: "business", Holidays: []string{"25/12/2024"}})
		Expect(err).To(HaveOccurred())
		_, err = sla.NewCalculator(sla.Config{DueSoonHours: -1})
		Expect(err).To(HaveOccurred())
	})

	t.Run("should default to calendar days in utc", func(t *testing.T) {
		c, err := sla.NewCalculator(sla.Config{DueSoonHours: 48})
		Expect(err).To(BeNil())
		Expect(c.Location).To(Equal(time.UTC))
		Expect(c.Strategy).To(Equal(sla.CalendarDays{}))
		Expect(c.DueSoonThreshold).To(Equal(48 * time.Hour))
	})
}

func TestStatus(t *testing.T) {
	RegisterTestingT(t)

	c := sla.DefaultCalculator()
	due := utc("2024-01-06T00:00:00Z")

	t.Run("should classify against now", func(t *testing.T) {
		Expect(c.Status(utc("2024-01-01T00:00:00Z"), due, nil)).To(Equal(sla.OnTrack))
		Expect(c.Status(utc("2024-01-04T23:59:59Z"), due, nil)).To(Equal(sla.OnTrack))
		Expect(c.Status(utc("2024-01-05T00:00:00Z"), due, nil)).To(Equal(sla.DueSoon))
		Expect(c.Status(utc("2024-01-05T12:00:00Z"), due, nil)).To(Equal(sla.DueSoon))
		Expect(c.Status(due, due, nil)).To(Equal(sla.DueSoon))
		Expect(c.Status(utc("2024-01-06T00:00:01Z"), due, nil)).To(Equal(sla.Breached))
	})

	t.Run("concluded wins over breach", func(t *testing.T) {
		concludedAt := utc("2024-01-03T00:00:00Z")
		Expect(c.Status(utc("2024-02-01T00:00:00Z"), due, &concludedAt)).To(Equal(sla.Concluded))
	})

	t.Run("should be monotonic in now", func(t *testing.T) {
		rank := map[sla.Status]int{sla.OnTrack: 0, sla.DueSoon: 1, sla.Breached: 2}
		last := 0
		for now := utc("2024-01-01T00:00:00Z"); now.Before(utc("2024-01-08T00:00:00Z")); now = now.Add(time.Hour) {
			r := rank[c.Status(now, due, nil)]
			Expect(r >= last).To(BeTrue())
			if now.After(due) {
				Expect(r).To(Equal(2))
			} else {
				Expect(r).ToNot(Equal(2))
			}
			last = r
		}
	})
}

func TestReport(t *testing.T) {
	RegisterTestingT(t)

	c := sla.DefaultCalculator()
	due := utc("2024-01-06T00:00:00Z")

	t.Run("should report remaining and overdue days", func(t *testing.T) {
		Expect(c.Report(utc("2024-01-05T12:00:00Z"), due, nil)).To(Equal(sla.Report{Status: sla.DueSoon, DueDate: due, DaysRemainingOrOverdue: 1}))
		Expect(c.Report(utc("2024-01-01T00:00:00Z"), due, nil)).To(Equal(sla.Report{Status: sla.OnTrack, DueDate: due, DaysRemainingOrOverdue: 5}))
		Expect(c.Report(due, due, nil).DaysRemainingOrOverdue).To(Equal(0))
		Expect(c.Report(utc("2024-01-06T01:00:00Z"), due, nil)).To(Equal(sla.Report{Status: sla.Breached, DueDate: due, DaysRemainingOrOverdue: -1}))
		Expect(c.Report(utc("2024-01-08T00:00:00Z"), due, nil).DaysRemainingOrOverdue).To(Equal(-2))
	})

	t.Run("should measure concluded protocols at conclusion", func(t *testing.T) {
		concludedAt := utc("2024-01-07T06:00:00Z")
		r := c.Report(utc("2024-03-01T00:00:00Z"), due, &concludedAt)
		Expect(r).To(Equal(sla.Report{Status: sla.Concluded, DueDate: due, DaysRemainingOrOverdue: -2}))
	})

	t.Run("should be idempotent for the same now", func(t *testing.T) {
		now := utc("2024-01-03T08:00:00Z")
		Expect(c.Report(now, due, nil)).To(Equal(c.Report(now, due, nil)))
	})
}
