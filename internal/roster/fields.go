package roster

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Field is a logical column resolved through header aliases.
type Field int

const (
	FieldStudentID Field = iota
	FieldName
	FieldSubject
	FieldDate
	FieldPoints
	FieldNote
)

// fieldAliases lists accepted headers per field, in probe order. Entries
// are compared after normalizeHeader, so case, width, spaces, underscores
// and hyphens do not matter.
var fieldAliases = map[Field][]string{
	FieldStudentID: {"学号", "学生编号", "学生ID", "studentid", "student_id", "id", "编号", "stuid"},
	FieldName:      {"姓名", "学生姓名", "名字", "name", "studentname", "student_name", "fullname"},
	FieldSubject:   {"科目", "学科", "课程", "subject", "course"},
	FieldDate:      {"日期", "记录日期", "时间", "date", "day", "recorddate"},
	FieldPoints:    {"分数", "积分", "加减分", "得分", "分值", "points", "point", "score", "delta"},
	FieldNote:      {"备注", "说明", "原因", "评语", "事由", "note", "notes", "remark", "comment", "reason"},
}

// normalizeHeader folds a header to a comparable form.
func normalizeHeader(h string) string {
	h = width.Fold.String(strings.TrimSpace(h))
	h = strings.ToLower(h)
	return strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "").Replace(h)
}

// fieldReader resolves logical fields on a single row.
type fieldReader struct {
	values map[string]string // normalized header -> first non-empty value
}

func newFieldReader(row Row) fieldReader {
	values := make(map[string]string, len(row))
	for k, v := range row {
		key := normalizeHeader(k)
		s := cellString(v)
		if s == "" {
			continue
		}
		if _, ok := values[key]; !ok {
			values[key] = s
		}
	}
	return fieldReader{values: values}
}

// get returns the first non-empty value among the field's aliases.
func (r fieldReader) get(f Field) string {
	for _, alias := range fieldAliases[f] {
		if v, ok := r.values[normalizeHeader(alias)]; ok && v != "" {
			return v
		}
	}
	return ""
}

// cellString renders a decoded cell as trimmed text.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// parsePoints reads a points cell. Empty or non-numeric cells are absent.
func parsePoints(s string) *float64 {
	s = width.Fold.String(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "−", "-")
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimSuffix(s, "分")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
