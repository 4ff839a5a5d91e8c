package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"
)

func main() {
	_ = godotenv.Load()
	Execute()
}
