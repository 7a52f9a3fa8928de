package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

const (
	contextObjectKey = "object"
	contextCourseKey = "course"
)

// roleMiddleware lets through authenticated users whose stored account passes allow.
// Roles come from the store, not the token, so deactivations and role changes apply at once.
func roleMiddleware(svc user.Service, allow func(usr user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if allow(usr) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// adminMiddleware requires an admin holding any of roles (any admin role when empty).
func adminMiddleware(svc user.Service, roles ...string) echo.MiddlewareFunc {
	return roleMiddleware(svc, func(usr user.User) bool {
		return usr.IsAdmin() && hasAnyRole(usr, roles)
	})
}

func facultyMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, func(usr user.User) bool { return usr.IsFaculty() })
}

func facultyOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, func(usr user.User) bool { return usr.IsFaculty() || usr.IsAdmin() })
}

func hasAnyRole(usr user.User, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		for _, r := range usr.Roles {
			if r == role {
				return true
			}
		}
	}
	return false
}

func ctxUserOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(contextObjectKey, usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

// courseMiddleware loads the `:id` Course for users allowed to see it.
// With manage set, only the course faculty and admins get through.
// Courses the user cannot see are reported as not found.
func courseMiddleware(courseSvc course.Service, userSvc user.Service, manage bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, userSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			c, err := courseSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == course.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding course by ID")
			}

			allowed := ctxUsr.IsAdmin() || c.FacultyID == ctxUsr.ID || (!manage && c.HasStudent(ctxUsr.ID))
			if !allowed {
				return errHttpNotFound
			}
			ctx.Set(contextCourseKey, c)
			return next(ctx)
		}
	}
}
