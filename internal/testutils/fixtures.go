// Package testutils provides fixtures and test doubles shared by the
// project's test suites and the sample dataset generator. These components
// are not part of the public API.
package testutils

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/ahrav/go-tally/internal/domain"
)

// Column headers of the grade and image score sheets.
var (
	GradeHeader = []string{"学号", "姓名", "课程类型", "成绩", "学分"}
	ImageHeader = []string{"图片名称", "图片路径", "类型", "FID得分", "HPSv2得分", "ImageReward得分"}
)

// GradeRow is one course result of a student. CourseType 0 is a degree
// course and 1 a non-degree course.
type GradeRow struct {
	StudentID  string
	Name       string
	CourseType int
	Score      float64
	Credit     float64
}

// ImageRow is the scores of one generated image. Empty strings model a
// scorer that produced nothing.
type ImageRow struct {
	Name        string
	Path        string
	Type        string
	FID         string
	HPSv2       string
	ImageReward string
}

// GradeTable builds a long-shaped grade sheet.
func GradeTable(rows ...GradeRow) domain.Table {
	t := domain.Table{Header: append([]string(nil), GradeHeader...)}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.StudentID,
			r.Name,
			strconv.Itoa(r.CourseType),
			Num(r.Score),
			Num(r.Credit),
		})
	}
	return t
}

// ImageTable builds a wide-shaped image score sheet.
func ImageTable(rows ...ImageRow) domain.Table {
	t := domain.Table{Header: append([]string(nil), ImageHeader...)}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Name, r.Path, r.Type, r.FID, r.HPSv2, r.ImageReward})
	}
	return t
}

// Num formats v the way a spreadsheet export would.
func Num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// GenerateGrades creates a deterministic grade sheet for students, each
// with between 2 and coursesPerStudent courses. Roughly one student in ten
// takes no non-degree course.
func GenerateGrades(seed int64, students, coursesPerStudent int) domain.Table {
	rng := rand.New(rand.NewSource(seed))
	coursesPerStudent = max(coursesPerStudent, 2)

	var rows []GradeRow
	for s := range students {
		id := fmt.Sprintf("2024%04d", s+1)
		name := fmt.Sprintf("student-%03d", s+1)
		n := 2 + rng.Intn(coursesPerStudent-1)
		degreeOnly := rng.Intn(10) == 0
		for c := range n {
			courseType := 0
			if !degreeOnly && c%3 == 2 {
				courseType = 1
			}
			rows = append(rows, GradeRow{
				StudentID:  id,
				Name:       name,
				CourseType: courseType,
				Score:      float64(55 + rng.Intn(46)),
				Credit:     float64(1+rng.Intn(8)) / 2,
			})
		}
	}
	return GradeTable(rows...)
}

// GenerateImageScores creates a deterministic image score sheet with
// images spread across types parameter configurations.
func GenerateImageScores(seed int64, images, types int) domain.Table {
	rng := rand.New(rand.NewSource(seed))
	types = max(types, 1)

	rows := make([]ImageRow, 0, images)
	for i := range images {
		typ := strconv.Itoa(i%types + 1)
		name := fmt.Sprintf("img_%04d.png", i+1)
		rows = append(rows, ImageRow{
			Name:        name,
			Path:        "outputs/" + typ + "/" + name,
			Type:        typ,
			FID:         Num(domain.Round(15+rng.Float64()*25, 4)),
			HPSv2:       Num(domain.Round(0.2+rng.Float64()*0.1, 4)),
			ImageReward: Num(domain.Round(rng.NormFloat64()*0.8, 4)),
		})
	}
	return ImageTable(rows...)
}
