package core

type Services struct {
	Repository *RepositoryService
	Source     *SourceService
	Job        *JobService
	Mount      *MountService
	Schedule   *ScheduleService
	User       *UserService
	Auth       *AuthService
	APIKey     *APIKeyService
	Analytics  *AnalyticsService
	Dashboard  *DashboardService
}

func NewServices(db DB, tokenSecret, tokenIssuer string) *Services {
	repos := NewRepositoryService(db)
	jobs := NewJobService(db)
	users := NewUserService(db)
	return &Services{
		Repository: repos,
		Source:     NewSourceService(db),
		Job:        jobs,
		Mount:      NewMountService(db),
		Schedule:   NewScheduleService(db),
		User:       users,
		Auth:       NewAuthService(users, tokenSecret, tokenIssuer),
		APIKey:     NewAPIKeyService(db),
		Analytics:  NewAnalyticsService(db, jobs, repos),
		Dashboard:  NewDashboardService(db),
	}
}
