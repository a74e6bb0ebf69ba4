package handler

import (
	"dash/internal/app/chat"
	"dash/internal/app/user"
	"dash/internal/configs"
	"dash/internal/pkg/auth/jwt"
	"dash/internal/pkg/password"
)

// AppDeps holds the long-lived services shared by every handler.
type AppDeps struct {
	Config    *configs.AppConfig
	Codec     *jwt.Codec
	Directory user.Directory
	Hasher    *password.Hasher
	Manager   *chat.Manager
}

// privileges resolves the elevated flag for session tokens.
func (d *AppDeps) privileges() jwt.PrivilegeLookup {
	return user.Privileges{Directory: d.Directory}
}
