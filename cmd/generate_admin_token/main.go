package main

import (
	"fmt"
	"log"

	"bus-backend/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	tokenString, err := utils.GenerateAdminJWT()
	if err != nil {
		log.Fatalf("Ошибка генерации административного токена: %v", err)
	}

	fmt.Printf("Generated admin token: %s\n", tokenString)
}
