// Package inmemdb provides in-memory Repository implementations for tests.
// Transactions are not supported; the trailing exec arguments repositories
// accept for interface compatibility are ignored.
package inmemdb

import (
	"sync"
	"time"

	"github.com/denis-rodionov/school-trainer-sub000/core/subject"
	"github.com/denis-rodionov/school-trainer-sub000/core/topic"
	"github.com/denis-rodionov/school-trainer-sub000/core/user"
	"github.com/denis-rodionov/school-trainer-sub000/core/worksheet"
)

type (
	DB struct {
		user      *userTable
		topic     *topicTable
		subject   *subjectTable
		worksheet *worksheetTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	topicTable struct {
		table map[string]*topic.Topic
		mutex sync.RWMutex
	}

	subjectTable struct {
		table map[string]*subject.SubjectData
		mutex sync.RWMutex
	}

	worksheetTable struct {
		worksheets map[string]*worksheet.Worksheet
		exercises  map[string]*exerciseRecord
		seqCount   int64
		mutex      sync.RWMutex
	}

	// exerciseRecord remembers insertion order so exercises come back in the
	// order they were generated within the same ord.
	exerciseRecord struct {
		exercise worksheet.Exercise
		seq      int64
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		topic:   &topicTable{table: make(map[string]*topic.Topic)},
		subject: &subjectTable{table: make(map[string]*subject.SubjectData)},
		worksheet: &worksheetTable{
			worksheets: make(map[string]*worksheet.Worksheet),
			exercises:  make(map[string]*exerciseRecord),
		},
	}
	return db, nil
}

func compareStrings(a, b string) (less, equal bool) {
	return a < b, a == b
}

func compareTimes(a, b time.Time) (less, equal bool) {
	return a.Before(b), a.Equal(b)
}
