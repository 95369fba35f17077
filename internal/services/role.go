package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/types"
)

// RoleRepository defines persistence operations for roles.
type RoleRepository interface {
	Create(ctx context.Context, role types.Role) (types.Role, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Role, error)
	GetByRoleID(ctx context.Context, roleID types.RoleType) (types.Role, error)
	GetByName(ctx context.Context, roleName string) (types.Role, error)
	List(ctx context.Context) ([]types.Role, error)
	Update(ctx context.Context, id primitive.ObjectID, roleName string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// RoleService encapsulates role use-cases.
type RoleService struct {
	repo RoleRepository
}

func NewRoleService(repo RoleRepository) *RoleService {
	return &RoleService{repo: repo}
}

func (s *RoleService) Create(ctx context.Context, role types.Role) (types.Role, error) {
	return s.repo.Create(ctx, role)
}

func (s *RoleService) GetByID(ctx context.Context, id primitive.ObjectID) (types.Role, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RoleService) GetByRoleID(ctx context.Context, roleID types.RoleType) (types.Role, error) {
	return s.repo.GetByRoleID(ctx, roleID)
}

func (s *RoleService) GetByName(ctx context.Context, roleName string) (types.Role, error) {
	return s.repo.GetByName(ctx, roleName)
}

func (s *RoleService) List(ctx context.Context) ([]types.Role, error) {
	return s.repo.List(ctx)
}

// Update renames a role and returns the fresh document.
func (s *RoleService) Update(ctx context.Context, id primitive.ObjectID, roleName string) (types.Role, error) {
	if err := s.repo.Update(ctx, id, roleName); err != nil {
		return types.Role{}, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *RoleService) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.repo.Delete(ctx, id)
}
