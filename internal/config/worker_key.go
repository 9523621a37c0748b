package config

type WorkerKeyStruct struct {
	RoleChangedQueue string
}

var WorkerKey = &WorkerKeyStruct{
	RoleChangedQueue: "role_changed_queue",
}
