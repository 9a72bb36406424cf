package session

// User-facing login failure messages. The dashboard's operators work in
// Uzbek, so these stay in Uzbek; callers render them verbatim in the login
// form.
const (
	msgNoConnection  = "Serverga ulanib bo'lmadi. Backend ishlaydimi?"
	msgBadCredential = "Username yoki parol noto'g'ri"
	msgInvalidData   = "Noto'g'ri ma'lumotlar"
	msgNoToken       = "Serverdan token kelmadi. Login javobini tekshiring."
	msgStorageFailed = "Ma'lumotlarni saqlashda xatolik. Qurilma sozlamalarini tekshiring."
	msgLoginError    = "Login xatosi"
)

// LoginFailedError is returned by Controller.Login when the attempt is
// rejected. Error() is the localized user-facing message, so handlers can
// render it inline without further mapping.
type LoginFailedError struct {
	Message string
	cause   error
}

func (e *LoginFailedError) Error() string { return e.Message }

func (e *LoginFailedError) Unwrap() error { return e.cause }
