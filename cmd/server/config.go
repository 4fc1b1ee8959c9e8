package main

import "time"

type Config struct {
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
	ConnectionBufferSize      int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	JWTSecret                 string        `env:"JWT_SECRET,required=true"`
	TokenDuration             time.Duration `env:"TOKEN_DURATION,default=24h"`
	ModerationCharReplacement rune          `env:"MODERATION_CHARACTER_REPLACEMENT,required=true"`
	StrictGroupMembers        bool          `env:"STRICT_GROUP_MEMBERS,default=false"`
	GCInterval                time.Duration `env:"GC_INTERVAL,default=5m"`
}
