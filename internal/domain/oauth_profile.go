package domain

// OAuthProfile es la identidad verificada que devuelve el proveedor OAuth,
// ya normalizada (un solo flag de email verificado).
type OAuthProfile struct {
	Subject       string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
	RefreshToken  string `json:"-"`
}
