package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/cache"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/config"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
)

func withCache(t *testing.T, deps *Deps) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	deps.Cache = cache.NewFreeSlots(rdb, config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "avail"})
	return mr
}

func expectFreeSlotReads(mock sqlmock.Sqlmock, taken ...int) {
	mock.ExpectQuery(qm("FROM weekly_availability")).WithArgs(doctorID, 1).WillReturnRows(mondayAvailability())
	rows := sqlmock.NewRows([]string{"start_minute"})
	for _, m := range taken {
		rows.AddRow(m)
	}
	mock.ExpectQuery(qm("SELECT start_minute FROM appointments")).WithArgs(doctorID, mondayStr).WillReturnRows(rows)
}

func TestFreeSlots_WholeDay(t *testing.T) {
	deps, mock, _ := newDeps(t)
	svc := NewAvailabilityService(deps)

	mock.ExpectQuery(qm("FROM doctors WHERE id = ?")).WithArgs(doctorID).WillReturnRows(doctorRows(doctorID, doctorUserID))
	expectFreeSlotReads(mock)

	slots, err := svc.FreeSlots(context.Background(), doctorID, mondayStr)
	require.NoError(t, err)
	assert.Equal(t, []model.Slot{
		{StartMinute: 540, EndMinute: 560, SlotMinutes: 20},
		{StartMinute: 560, EndMinute: 580, SlotMinutes: 20},
		{StartMinute: 580, EndMinute: 600, SlotMinutes: 20},
	}, slots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeSlots_ExcludesBookedAndCaches(t *testing.T) {
	deps, mock, _ := newDeps(t)
	mr := withCache(t, &deps)
	svc := NewAvailabilityService(deps)
	ctx := context.Background()

	mock.ExpectQuery(qm("FROM doctors WHERE id = ?")).WithArgs(doctorID).WillReturnRows(doctorRows(doctorID, doctorUserID))
	expectFreeSlotReads(mock, 560)
	first, err := svc.FreeSlots(ctx, doctorID, mondayStr)
	require.NoError(t, err)
	assert.Equal(t, []model.Slot{
		{StartMinute: 540, EndMinute: 560, SlotMinutes: 20},
		{StartMinute: 580, EndMinute: 600, SlotMinutes: 20},
	}, first)
	assert.True(t, mr.Exists("avail:7:2025-03-03"))

	// second read is served from Redis; only the doctor lookup hits SQL
	mock.ExpectQuery(qm("FROM doctors WHERE id = ?")).WithArgs(doctorID).WillReturnRows(doctorRows(doctorID, doctorUserID))
	second, err := svc.FreeSlots(ctx, doctorID, mondayStr)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeSlots_InvalidatedByBooking(t *testing.T) {
	deps, mock, _ := newDeps(t)
	mr := withCache(t, &deps)
	require.NoError(t, mr.Set("avail:7:2025-03-03", `[{"start_minute":540,"end_minute":560,"slot_minutes":20}]`))
	require.NoError(t, mr.Set("avail:7:2025-03-10", `[]`))

	expectBookingTx(mock, 1, 540, 1)
	_, err := NewBookingService(deps).Book(context.Background(), bookReq(540))
	require.NoError(t, err)

	assert.False(t, mr.Exists("avail:7:2025-03-03"))
	assert.True(t, mr.Exists("avail:7:2025-03-10"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeSlots_Errors(t *testing.T) {
	deps, mock, _ := newDeps(t)
	svc := NewAvailabilityService(deps)

	_, err := svc.FreeSlots(context.Background(), doctorID, "")
	assert.Equal(t, KindValidation, KindOf(err))

	mock.ExpectQuery(qm("FROM doctors WHERE id = ?")).WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "avg_rating", "total_reviews", "updated_at"}))
	_, err = svc.FreeSlots(context.Background(), 404, mondayStr)
	assert.Equal(t, KindNotFound, KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeSlots_DayWithoutTemplate(t *testing.T) {
	deps, mock, _ := newDeps(t)
	svc := NewAvailabilityService(deps)

	// 2025-03-04 is a Tuesday
	mock.ExpectQuery(qm("FROM doctors WHERE id = ?")).WithArgs(doctorID).WillReturnRows(doctorRows(doctorID, doctorUserID))
	mock.ExpectQuery(qm("FROM weekly_availability")).WithArgs(doctorID, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "weekday", "start_minute", "end_minute", "slot_minutes", "timezone"}))
	mock.ExpectQuery(qm("SELECT start_minute FROM appointments")).WithArgs(doctorID, "2025-03-04").
		WillReturnRows(sqlmock.NewRows([]string{"start_minute"}))

	slots, err := svc.FreeSlots(context.Background(), doctorID, "2025-03-04")
	require.NoError(t, err)
	assert.Empty(t, slots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_SwapsTemplateAndDropsCache(t *testing.T) {
	deps, mock, _ := newDeps(t)
	mr := withCache(t, &deps)
	require.NoError(t, mr.Set("avail:7:2025-03-03", `[]`))
	require.NoError(t, mr.Set("avail:8:2025-03-03", `[]`))
	svc := NewAvailabilityService(deps)

	rows := []model.WeeklyAvailability{
		{Weekday: 1, StartMinute: 540, EndMinute: 600, SlotMinutes: 20},
		{Weekday: 3, StartMinute: 840, EndMinute: 960},
	}
	mock.ExpectQuery(qm("FROM doctors WHERE user_id = ?")).WithArgs(doctorUserID).WillReturnRows(doctorRows(doctorID, doctorUserID))
	mock.ExpectBegin()
	mock.ExpectExec(qm("DELETE FROM weekly_availability WHERE doctor_id = ?")).WithArgs(doctorID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(qm("INSERT INTO weekly_availability")).
		WithArgs(doctorID, 1, 540, 600, 20, "UTC", doctorID, 3, 840, 960, 30, "UTC").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := svc.Replace(context.Background(), Actor{UserID: doctorUserID, Role: model.RoleDoctor}, rows)
	require.NoError(t, err)
	assert.False(t, mr.Exists("avail:7:2025-03-03"))
	assert.True(t, mr.Exists("avail:8:2025-03-03"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplace_Rejections(t *testing.T) {
	deps, mock, _ := newDeps(t)
	svc := NewAvailabilityService(deps)
	ctx := context.Background()
	doctor := Actor{UserID: doctorUserID, Role: model.RoleDoctor}
	valid := []model.WeeklyAvailability{{Weekday: 1, StartMinute: 540, EndMinute: 600}}

	err := svc.Replace(ctx, doctor, nil)
	assert.Equal(t, KindValidation, KindOf(err))

	err = svc.Replace(ctx, doctor, []model.WeeklyAvailability{{Weekday: 7, StartMinute: 540, EndMinute: 600}})
	assert.Equal(t, KindValidation, KindOf(err))

	err = svc.Replace(ctx, Actor{UserID: patientID, Role: model.RolePatient}, valid)
	assert.Equal(t, KindForbidden, KindOf(err))

	mock.ExpectQuery(qm("FROM doctors WHERE user_id = ?")).WithArgs(555).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "avg_rating", "total_reviews", "updated_at"}))
	err = svc.Replace(ctx, Actor{UserID: 555, Role: model.RoleDoctor}, valid)
	assert.Equal(t, KindForbidden, KindOf(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWeekly(t *testing.T) {
	deps, mock, _ := newDeps(t)
	svc := NewAvailabilityService(deps)

	mock.ExpectQuery(qm("FROM doctors WHERE id = ?")).WithArgs(doctorID).WillReturnRows(doctorRows(doctorID, doctorUserID))
	mock.ExpectQuery(qm("ORDER BY weekday, start_minute")).WithArgs(doctorID).WillReturnRows(mondayAvailability())

	rows, err := svc.Weekly(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 20, rows[0].SlotMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}
