package submission

import (
	"fmt"
	"strings"

	"presenca/internal/backend"
)

// Mode は画面の種類。初期化時に一度だけ決める
type Mode int

const (
	// Attendance は出席登録画面
	Attendance Mode = iota
	// Enrollment は顔登録画面
	Enrollment
)

// enrollmentMarker はパスに含まれていれば登録画面とみなす目印
const enrollmentMarker = "cadastrar"

func (m Mode) String() string {
	if m == Enrollment {
		return "cadastro"
	}
	return "presenca"
}

// Endpoint は送信先のパス
func (m Mode) Endpoint() string {
	if m == Enrollment {
		return backend.PathEnrollment
	}
	return backend.PathAttendance
}

// ModeFromPath はページのパスから画面の種類を決める
func ModeFromPath(path string) Mode {
	if strings.Contains(path, enrollmentMarker) {
		return Enrollment
	}
	return Attendance
}

// ParseMode は設定値から画面の種類を決める
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "presenca", "attendance":
		return Attendance, nil
	case "cadastro", "enrollment":
		return Enrollment, nil
	default:
		return Attendance, fmt.Errorf("unknown page mode: %q", s)
	}
}

// ResolveMode は明示的な指定を優先し、なければパスで決める
func ResolveMode(mode, path string) (Mode, error) {
	if strings.TrimSpace(mode) != "" {
		return ParseMode(mode)
	}
	return ModeFromPath(path), nil
}
