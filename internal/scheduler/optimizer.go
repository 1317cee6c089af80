package scheduler

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/schedulus-api/internal/models"
)

// ErrNoAvailableSlots is returned when unpinned lessons exist but every timeslot/room pair is taken by pins.
var ErrNoAvailableSlots = errors.New("no available timeslot/room pairs for unpinned lessons")

// Placement is a candidate (timeslot, room) pair.
type Placement struct {
	Timeslot models.Timeslot
	Room     models.Room
}

func (p Placement) key() string {
	return placementKey(p.Timeslot.ID, p.Room.ID)
}

func placementKey(timeslotID, roomID string) string {
	return timeslotID + "|" + roomID
}

// Optimizer runs the greedy reassignment heuristic with an injected random source.
type Optimizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewOptimizer seeds the random source. A zero seed uses the current time.
func NewOptimizer(seed int64) *Optimizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewOptimizerWithSource(rand.NewSource(seed))
}

// NewOptimizerWithSource uses src for every shuffle and random placement.
func NewOptimizerWithSource(src rand.Source) *Optimizer {
	return &Optimizer{rnd: rand.New(src)}
}

// AvailablePlacements returns every timeslot x room pair not occupied by a pinned lesson, in input order.
func AvailablePlacements(lessons []models.Lesson, timeslots []models.Timeslot, rooms []models.Room) []Placement {
	used := make(map[string]struct{})
	for _, lesson := range lessons {
		if lesson.Pinned && lesson.Timeslot != nil && lesson.Room != nil {
			used[placementKey(lesson.Timeslot.ID, lesson.Room.ID)] = struct{}{}
		}
	}

	pool := make([]Placement, 0, len(timeslots)*len(rooms))
	for _, ts := range timeslots {
		for _, room := range rooms {
			p := Placement{Timeslot: ts, Room: room}
			if _, taken := used[p.key()]; taken {
				continue
			}
			pool = append(pool, p)
		}
	}
	return pool
}

// Reassign moves every unpinned lesson to a new placement. Pinned lessons come back first and untouched,
// followed by unpinned lessons ordered hardest first. When lessons outnumber free pairs the pool wraps
// around, so the result may still carry hard conflicts.
func (o *Optimizer) Reassign(lessons []models.Lesson, timeslots []models.Timeslot, rooms []models.Room) ([]models.Lesson, error) {
	pinned := make([]models.Lesson, 0, len(lessons))
	unpinned := make([]models.Lesson, 0, len(lessons))
	for _, lesson := range lessons {
		if lesson.Pinned {
			pinned = append(pinned, lesson.Clone())
		} else {
			unpinned = append(unpinned, lesson.Clone())
		}
	}

	pool := AvailablePlacements(lessons, timeslots, rooms)
	if len(unpinned) > 0 && len(pool) == 0 {
		return nil, ErrNoAvailableSlots
	}

	o.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Timeslot.StartHour() < pool[j].Timeslot.StartHour()
	})
	sort.SliceStable(unpinned, func(i, j int) bool {
		return unpinned[i].DifficultyWeight > unpinned[j].DifficultyWeight
	})

	for i := range unpinned {
		slot := pool[i%len(pool)]
		ts := slot.Timeslot
		room := slot.Room
		unpinned[i].Timeslot = &ts
		unpinned[i].Room = &room
	}

	return append(pinned, unpinned...), nil
}

// InitialAssignment spreads lessons over independently shuffled timeslots and rooms, cycling both lists.
// Lessons stay unscheduled when either list is empty.
func (o *Optimizer) InitialAssignment(lessons []models.Lesson, timeslots []models.Timeslot, rooms []models.Room) []models.Lesson {
	out := models.CloneLessons(lessons)
	if len(timeslots) == 0 || len(rooms) == 0 {
		return out
	}
	ts := append([]models.Timeslot(nil), timeslots...)
	rs := append([]models.Room(nil), rooms...)
	o.shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
	o.shuffle(len(rs), func(i, j int) { rs[i], rs[j] = rs[j], rs[i] })

	for i := range out {
		slot := ts[i%len(ts)]
		room := rs[i%len(rs)]
		out[i].Timeslot = &slot
		out[i].Room = &room
	}
	return out
}

// RandomPlacement picks a timeslot and room uniformly. Both are nil when either list is empty.
func (o *Optimizer) RandomPlacement(timeslots []models.Timeslot, rooms []models.Room) (*models.Timeslot, *models.Room) {
	if len(timeslots) == 0 || len(rooms) == 0 {
		return nil, nil
	}
	o.mu.Lock()
	ti := o.rnd.Intn(len(timeslots))
	ri := o.rnd.Intn(len(rooms))
	o.mu.Unlock()

	ts := timeslots[ti]
	room := rooms[ri]
	return &ts, &room
}

func (o *Optimizer) shuffle(n int, swap func(i, j int)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rnd.Shuffle(n, swap)
}
