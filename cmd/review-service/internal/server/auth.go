package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-kratos/kratos/v2/log"

	"docreview/pkg/auth"
)

type callerKey struct{}

// callerInfo 请求方身份。verified只在token验签通过时为真，
// 网关注入的X-User-ID头不算验证过。
type callerInfo struct {
	id       string
	verified bool
}

// CallerFromContext 取出请求方的用户ID，未认证时为空串
func CallerFromContext(ctx context.Context) string {
	if info, ok := ctx.Value(callerKey{}).(callerInfo); ok {
		return info.id
	}
	return ""
}

// VerifiedCallerFromContext 取出验签过的用户ID。
// 限流等不信任请求头的地方用这个。
func VerifiedCallerFromContext(ctx context.Context) (string, bool) {
	info, ok := ctx.Value(callerKey{}).(callerInfo)
	if !ok || !info.verified {
		return "", false
	}
	return info.id, true
}

// AuthFilter 请求方身份过滤器。优先解析Bearer token，
// 没有token时回退到网关注入的X-User-ID头。
// 这里只做身份提取，所有权判断在领域层。
func AuthFilter(verifier *auth.JWTVerifier, logger log.Logger) func(http.Handler) http.Handler {
	helper := log.NewHelper(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := callerInfo{}

			if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
				token := strings.TrimPrefix(header, "Bearer ")
				claims, err := verifier.Verify(token)
				if err != nil {
					helper.Debugf("token verification failed: %v", err)
				} else {
					info = callerInfo{id: claims.UserID, verified: true}
				}
			}

			if info.id == "" {
				info.id = r.Header.Get("X-User-ID")
			}

			ctx := context.WithValue(r.Context(), callerKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
