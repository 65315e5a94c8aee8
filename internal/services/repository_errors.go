package services

import (
	"errors"

	"github.com/techbantu/GharSe-sub003/internal/repositories"
)

func isRepositoryNotFound(err error) bool {
	if err == nil {
		return false
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
