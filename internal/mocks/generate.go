package mocks

//go:generate mockery --name Store --srcpkg github.com/dmphub-lab/dmphub/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Publisher --srcpkg github.com/dmphub-lab/dmphub/internal/notify --output ./notify --outpkg notifymocks --with-expecter
