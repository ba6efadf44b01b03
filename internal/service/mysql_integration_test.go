package service

import (
	"context"
	"database/sql"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/database"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/logging"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/repository"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/schedule"
)

// liveDeps connects to the MySQL named by SCHEDULER_TEST_MYSQL_DSN,
// applies the schema and seeds a doctor available every day from 08:00
// to 18:00 in 10 minute slots.
func liveDeps(t *testing.T) (Deps, uint64) {
	t.Helper()
	dsn := os.Getenv("SCHEDULER_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SCHEDULER_TEST_MYSQL_DSN not set")
	}
	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["transaction_isolation"] = "'READ-COMMITTED'"
	conn, err := mysql.NewConnector(cfg)
	require.NoError(t, err)
	db := sql.OpenDB(conn)
	db.SetMaxOpenConns(32)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))

	userID := uint64(time.Now().UnixNano() & 0x7fffffffffff)
	res, err := db.ExecContext(ctx, `INSERT INTO doctors (user_id, name) VALUES (?, 'Integration')`, userID)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	docID := uint64(id)

	avail := repository.NewAvailabilityRepo(db)
	rows := make([]model.WeeklyAvailability, 0, 7)
	for wd := 0; wd < 7; wd++ {
		rows = append(rows, model.WeeklyAvailability{Weekday: wd, StartMinute: 480, EndMinute: 1080, SlotMinutes: 10, Timezone: "UTC"})
	}
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, avail.ReplaceTx(ctx, tx, docID, rows))
	require.NoError(t, tx.Commit())

	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM appointments WHERE doctor_id = ?`, docID)
		db.ExecContext(ctx, `DELETE FROM day_counters WHERE doctor_id = ?`, docID)
		db.ExecContext(ctx, `DELETE FROM weekly_availability WHERE doctor_id = ?`, docID)
		db.ExecContext(ctx, `DELETE FROM doctors WHERE id = ?`, docID)
	})

	return Deps{
		DB:           db,
		Availability: avail,
		Appointments: repository.NewAppointmentRepo(db),
		Counters:     repository.NewDayCounterRepo(db),
		Doctors:      repository.NewDoctorRepo(db),
		Log:          logging.Discard(),
		MaxRetries:   10,
	}, docID
}

func futureDay() string {
	return schedule.NormalizeDate(time.Now().AddDate(0, 0, 7)).Format(schedule.DateLayout)
}

func TestMySQL_ConcurrentSameSlot(t *testing.T) {
	deps, docID := liveDeps(t)
	svc := NewBookingService(deps)
	day := futureDay()

	const n = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(patient uint64) {
			defer wg.Done()
			_, err := svc.Book(context.Background(), BookRequest{DoctorID: docID, PatientUserID: patient, Date: day, StartMinute: 600})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case KindOf(err) == KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(1000 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestMySQL_ConcurrentSerialsAreContiguous(t *testing.T) {
	deps, docID := liveDeps(t)
	svc := NewBookingService(deps)
	day := futureDay()

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		serials []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := svc.Book(context.Background(), BookRequest{DoctorID: docID, PatientUserID: uint64(2000 + i), Date: day, StartMinute: 480 + 10*i})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			serials = append(serials, int(a.SerialNumber))
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	sort.Ints(serials)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, serials)
}
