package middleware

import (
	"errors"
	"net/http"
	"strings"

	"bus-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// JWTAuth проверяет токен авторизации и кладет user_id и role в контекст
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Отсутствует токен авторизации", "code": "TOKEN_MISSING"})
			c.Abort()
			return
		}

		// Проверяем формат токена
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный формат токена", "code": "TOKEN_INVALID"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			// Истекший токен отдаем отдельным кодом, чтобы клиент мог
			// обновить сессию
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Срок действия токена истек", "code": "TOKEN_EXPIRED"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Недействительный токен", "code": "TOKEN_INVALID"})
			}
			c.Abort()
			return
		}

		if claims.Role == "admin" {
			c.Set("user_id", uint(0))
			c.Set("role", "admin")
			c.Next()
			return
		}

		if claims.UserID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Недействительный ID пользователя", "code": "TOKEN_INVALID"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}
