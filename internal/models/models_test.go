package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAttendanceStats(t *testing.T) {
	assert.Equal(t, AttendanceStats{}, NewAttendanceStats(0, 0))

	stats := NewAttendanceStats(3, 2)
	assert.Equal(t, 1, stats.Absences)
	assert.Equal(t, 66.67, stats.Percentage)

	assert.Equal(t, 100.0, NewAttendanceStats(4, 4).Percentage)
}

func TestCourseFillDerived(t *testing.T) {
	c := Course{Capacity: 10, EnrolledCount: 7}
	c.FillDerived()
	assert.Equal(t, 3, c.AvailableCapacity)

	c.EnrolledCount = 12
	c.FillDerived()
	assert.Equal(t, 0, c.AvailableCapacity)
}

func TestPaymentNeedsReceipt(t *testing.T) {
	receipt := "REC-2024-000001"
	assert.True(t, Payment{Status: PaymentPaid}.NeedsReceipt())
	assert.False(t, Payment{Status: PaymentPaid, ReceiptNumber: &receipt}.NeedsReceipt())
	assert.False(t, Payment{Status: PaymentPending}.NeedsReceipt())
}

func TestScheduleEntryHours(t *testing.T) {
	entry := ScheduleEntry{Weekday: "MONDAY", StartTime: "08:00", EndTime: "09:30"}
	assert.Equal(t, 1.5, entry.Hours())
	assert.Equal(t, 0.0, ScheduleEntry{Weekday: "MONDAY", StartTime: "10:00", EndTime: "09:00"}.Hours())
}

func TestPrincipalHasRole(t *testing.T) {
	p := Principal{UserID: "u1", Role: RoleTeacher}
	assert.True(t, p.HasRole(RoleAdmin, RoleTeacher))
	assert.False(t, p.IsAdmin())
	assert.False(t, UserRole("SUPERADMIN").Valid())
}
