package main

import "time"

type Config struct {
	EventBufferSize           int           `env:"EVENT_BUFFER_SIZE,required=true"`
	ConnectionBufferSize      int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	ModerationCharReplacement rune          `env:"MODERATION_CHARACTER_REPLACEMENT,default=42"`
	MessagePageLimit          int           `env:"MESSAGE_PAGE_LIMIT,default=50"`
	SinkTimeout               time.Duration `env:"SINK_TIMEOUT,required=true"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	JWTKey                    string        `env:"JWT_KEY,required=true"`
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	LogFile                   string        `env:"LOG_FILE,default=yalla-chat.log"`
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
}
