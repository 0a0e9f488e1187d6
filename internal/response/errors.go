package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrTokenRevoked  ErrCode = "TOKEN_REVOKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrProctorAccessOnly   ErrCode = "PROCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownAction  ErrCode = "UNKNOWN_ACTION"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Test-specific ─────────────────────────────────────────────────
	ErrTestNotFound ErrCode = "TEST_NOT_FOUND"
	ErrInvalidTest  ErrCode = "INVALID_TEST"

	// ─── Session-specific ──────────────────────────────────────────────
	ErrSessionNotOpen       ErrCode = "SESSION_NOT_OPEN"
	ErrSessionClosed        ErrCode = "SESSION_CLOSED"
	ErrAlreadySubmitted     ErrCode = "ALREADY_SUBMITTED"
	ErrInvalidTransition    ErrCode = "INVALID_TRANSITION"
	ErrInstructionsRequired ErrCode = "INSTRUCTIONS_NOT_ACCEPTED"
	ErrSubmissionInProgress ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrUnknownQuestion      ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidOption        ErrCode = "INVALID_OPTION"
	ErrSectionLocked        ErrCode = "SECTION_LOCKED"
	ErrIndexOutOfRange      ErrCode = "INDEX_OUT_OF_RANGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal    ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."
	case ErrTokenRevoked:
		return "Token autentikasi telah dicabut. Silakan login kembali."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrCandidateAccessOnly:
		return "Sumber daya ini terbatas untuk peserta."
	case ErrProctorAccessOnly:
		return "Sumber daya ini terbatas untuk pengawas."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrUnknownAction:
		return "Aksi tidak dikenal."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Test-specific ─────────────────────────────────────────────────
	case ErrTestNotFound:
		return "Tes tidak ditemukan."
	case ErrInvalidTest:
		return "Definisi tes tidak valid."

	// ─── Session-specific ──────────────────────────────────────────────
	case ErrSessionNotOpen:
		return "Sesi tes belum dibuka."
	case ErrSessionClosed:
		return "Sesi tes telah berakhir."
	case ErrAlreadySubmitted:
		return "Tes ini sudah dikumpulkan."
	case ErrInvalidTransition:
		return "Aksi ini tidak diperbolehkan pada tahap saat ini."
	case ErrInstructionsRequired:
		return "Petunjuk harus disetujui sebelum memulai."
	case ErrSubmissionInProgress:
		return "Pengumpulan sedang diproses."
	case ErrUnknownQuestion:
		return "Soal tidak ditemukan."
	case ErrInvalidOption:
		return "Pilihan jawaban tidak valid."
	case ErrSectionLocked:
		return "Soal berada di luar bagian yang sedang aktif."
	case ErrIndexOutOfRange:
		return "Nomor soal di luar jangkauan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrUnavailable:
		return "Layanan sedang dihentikan. Silakan coba lagi nanti."
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
