package doctor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medbook/medbook/internal/platform/apperr"
)

type slotKey struct {
	doctorID int64
	date     string
	slot     int
}

// mockRepo enforces the same full-name uniqueness as the doctors table.
type mockRepo struct {
	mu      sync.Mutex
	nextID  int64
	doctors map[int64]*Doctor
	busy    map[slotKey]bool
	// referenced marks doctors that have appointments.
	referenced map[int64]bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		doctors:    make(map[int64]*Doctor),
		busy:       make(map[slotKey]bool),
		referenced: make(map[int64]bool),
	}
}

func (m *mockRepo) collides(d *Doctor) bool {
	for _, o := range m.doctors {
		if o.ID != d.ID && o.FirstName == d.FirstName && o.Surname == d.Surname &&
			o.MiddleName == d.MiddleName && o.Specialization == d.Specialization {
			return true
		}
	}
	return false
}

func (m *mockRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collides(d) {
		return apperr.ErrDoctorAlreadyExists
	}
	m.nextID++
	d.ID = m.nextID
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[d.ID]; !ok {
		return apperr.ErrDoctorNotFound
	}
	if m.collides(d) {
		return apperr.ErrDoctorAlreadyExists
	}
	d.UpdatedAt = time.Now()
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[id]; !ok {
		return apperr.ErrDoctorNotFound
	}
	if m.referenced[id] {
		return apperr.ErrDoctorHasAppointments
	}
	delete(m.doctors, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Doctor
	for _, d := range m.doctors {
		if f.FirstName != nil && d.FirstName != *f.FirstName ||
			f.Surname != nil && d.Surname != *f.Surname ||
			f.MiddleName != nil && d.MiddleName != *f.MiddleName ||
			f.Specialization != nil && d.Specialization != *f.Specialization {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) IsSlotAvailable(_ context.Context, doctorID int64, date time.Time, slot int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.busy[slotKey{doctorID, date.Format("2006-01-02"), slot}], nil
}

func validInput() CreateInput {
	return CreateInput{
		FirstName:      "Anna",
		Surname:        "Petrova",
		MiddleName:     "Ivanovna",
		Specialization: SpecTherapist,
		Description:    "Room 12",
	}
}

func TestService_Create(t *testing.T) {
	svc := NewService(newMockRepo())
	in := validInput()
	in.FirstName = "  Anna "

	d, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Equal(t, "Anna", d.FirstName)
	assert.Equal(t, SpecTherapist, d.Specialization)
}

func TestService_Create_Duplicate(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), validInput())
	assert.ErrorIs(t, err, apperr.ErrDoctorAlreadyExists)

	other := validInput()
	other.Specialization = SpecSurgeon
	_, err = svc.Create(context.Background(), other)
	assert.NoError(t, err, "same name with another specialization is a different doctor")
}

func TestService_Create_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	cases := map[string]func(*CreateInput){
		"missing first name":     func(in *CreateInput) { in.FirstName = " " },
		"missing surname":        func(in *CreateInput) { in.Surname = "" },
		"missing middle name":    func(in *CreateInput) { in.MiddleName = "" },
		"unknown specialization": func(in *CreateInput) { in.Specialization = "dentist" },
	}
	for name, mutate := range cases {
		in := validInput()
		mutate(&in)
		_, err := svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, apperr.ErrBadRequest, name)
	}
}

func TestService_Update(t *testing.T) {
	svc := NewService(newMockRepo())
	d, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	desc := "Room 14"
	spec := SpecDistrict
	updated, err := svc.Update(context.Background(), d.ID, UpdateInput{Specialization: &spec, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, SpecDistrict, updated.Specialization)
	assert.Equal(t, "Room 14", updated.Description)
	assert.Equal(t, "Anna", updated.FirstName)

	_, err = svc.Update(context.Background(), 999, UpdateInput{Description: &desc})
	assert.ErrorIs(t, err, apperr.ErrDoctorNotFound)

	bad := Specialization("dentist")
	_, err = svc.Update(context.Background(), d.ID, UpdateInput{Specialization: &bad})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestService_Update_Collision(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	in := validInput()
	in.Specialization = SpecSurgeon
	surgeon, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	spec := SpecTherapist
	_, err = svc.Update(context.Background(), surgeon.ID, UpdateInput{Specialization: &spec})
	assert.ErrorIs(t, err, apperr.ErrDoctorAlreadyExists)
}

func TestService_Delete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	d, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	repo.referenced[d.ID] = true
	assert.ErrorIs(t, svc.Delete(context.Background(), d.ID), apperr.ErrDoctorHasAppointments)

	repo.referenced[d.ID] = false
	require.NoError(t, svc.Delete(context.Background(), d.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), d.ID), apperr.ErrDoctorNotFound)
}

func TestService_GetAndExists(t *testing.T) {
	svc := NewService(newMockRepo())
	d, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = svc.Get(context.Background(), d.ID+1)
	assert.ErrorIs(t, err, apperr.ErrDoctorNotFound)

	ok, err := svc.Exists(context.Background(), d.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.Exists(context.Background(), d.ID+1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_List(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	in := validInput()
	in.Specialization = SpecSurgeon
	_, err = svc.Create(context.Background(), in)
	require.NoError(t, err)

	all, err := svc.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	spec := SpecSurgeon
	surgeons, err := svc.List(context.Background(), Filter{Specialization: &spec})
	require.NoError(t, err)
	require.Len(t, surgeons, 1)
	assert.Equal(t, SpecSurgeon, surgeons[0].Specialization)

	none := "Nobody"
	empty, err := svc.List(context.Background(), Filter{Surname: &none})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	bad := Specialization("dentist")
	_, err = svc.List(context.Background(), Filter{Specialization: &bad})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestService_IsSlotAvailable(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	day := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	repo.busy[slotKey{1, "2025-04-10", 3}] = true

	ok, err := svc.IsSlotAvailable(context.Background(), 1, day, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsSlotAvailable(context.Background(), 1, day, 4)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSpecializations(t *testing.T) {
	list := Specializations()
	require.Len(t, list, 10)
	for _, s := range list {
		assert.True(t, s.Code.Valid())
		assert.NotEmpty(t, s.Label)
	}
	assert.Equal(t, SpecCovidDuty, list[0].Code)
	assert.False(t, Specialization("dentist").Valid())
}
