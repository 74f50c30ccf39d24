package dummydb

import (
	"sync"

	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/rating"
	"github.com/trezcool/mitihani/core/user"
)

type (
	DB struct {
		user   *userTable
		exam   *examTable
		rating *ratingTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	examTable struct {
		sync.RWMutex
		table map[string]*exam.Exam
	}

	ratingTable struct {
		sync.RWMutex
		table map[string]*rating.Rating
	}
)

func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		exam:   &examTable{table: make(map[string]*exam.Exam)},
		rating: &ratingTable{table: make(map[string]*rating.Rating)},
	}
}
