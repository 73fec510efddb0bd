// models/survey.go
package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Descriptor identifies one yearly survey dataset before anything is downloaded.
type Descriptor struct {
	ID   string `json:"id"`
	Year int    `json:"year"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%d (%s)", d.Year, d.ID)
}

// Role is the logical role of an archive member.
type Role string

const (
	RoleResponses Role = "responses"
	RoleSchema    Role = "schema"
)

// Member is a recognized file inside a survey archive.
type Member struct {
	Name string
	Role Role
}

// Row is one table row. Invalid entries are NULL.
type Row []sql.NullString

// Question is one row of a survey_<year>_questions table.
type Question struct {
	ColumnName   string `csv:"column_name" db:"column_name"`
	QuestionText string `csv:"question_text" db:"question_text"`
}

// ColumnMetadata summarizes one response column of one survey year.
type ColumnMetadata struct {
	Year         int     `csv:"year" db:"year" json:"year"`
	ColumnName   string  `csv:"column_name" db:"column_name" json:"column_name"`
	QuestionText string  `csv:"question_text" db:"question_text" json:"question_text"`
	Nulls        float64 `csv:"nulls" db:"nulls" json:"nulls"`
	Uniques      int     `csv:"uniques" db:"uniques" json:"uniques"`
	Response1    string  `csv:"response_1" db:"response_1" json:"response_1"`
	Response2    string  `csv:"response_2" db:"response_2" json:"response_2"`
	Response3    string  `csv:"response_3" db:"response_3" json:"response_3"`
	Responses    int     `csv:"responses" db:"responses" json:"responses"` // row count of the year's responses table
}

// SurveyLoad tracks the last successful load of a survey year.
type SurveyLoad struct {
	Year        int       `db:"year" json:"year"`
	SurveyID    string    `db:"survey_id" json:"survey_id"`
	ArchiveFile string    `db:"archive_file" json:"archive_file"`
	Tables      string    `db:"table_names" json:"tables"` // comma separated
	LoadedAt    time.Time `db:"loaded_at" json:"loaded_at"`
}
