package enums

type SubjectKind string

const (
	SubjectKindCourse SubjectKind = "course"
	SubjectKindOrder  SubjectKind = "order"
)
