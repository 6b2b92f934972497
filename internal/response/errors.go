package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly  ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly  ErrCode = "TEACHER_ACCESS_ONLY"
	ErrNotClassroomMember ErrCode = "NOT_CLASSROOM_MEMBER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotFound         ErrCode = "EXAM_NOT_FOUND"
	ErrInvalidExam          ErrCode = "INVALID_EXAM"
	ErrExamAlreadySubmitted ErrCode = "EXAM_ALREADY_SUBMITTED"
	ErrNoSubmission         ErrCode = "NO_SUBMISSION"
	ErrSessionInProgress    ErrCode = "SESSION_IN_PROGRESS"
	ErrNoActiveSession      ErrCode = "NO_ACTIVE_SESSION"
	ErrActionIgnored        ErrCode = "ACTION_IGNORED"
	ErrSubmissionFailed     ErrCode = "SUBMISSION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email atau kata sandi salah."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrTeacherAccessOnly:
		return "Sumber daya ini terbatas untuk guru."
	case ErrNotClassroomMember:
		return "Anda bukan anggota kelas ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotFound:
		return "Ujian tidak ditemukan di kelas ini."
	case ErrInvalidExam:
		return "Ujian ini tidak memiliki pertanyaan."
	case ErrExamAlreadySubmitted:
		return "Anda sudah mengumpulkan ujian ini."
	case ErrNoSubmission:
		return "Jawaban untuk ujian ini tidak ditemukan."
	case ErrSessionInProgress:
		return "Selesaikan atau tutup ujian yang sedang berlangsung terlebih dahulu."
	case ErrNoActiveSession:
		return "Tidak ada sesi ujian yang terbuka."
	case ErrActionIgnored:
		return "Tindakan ini tidak diperbolehkan pada kondisi sesi saat ini."
	case ErrSubmissionFailed:
		return "Jawaban Anda gagal disimpan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
