package model

// Record-store entity type names.
const (
	EntityProject           = "Project"
	EntityTask              = "Task"
	EntityShot              = "Shot"
	EntityAsset             = "Asset"
	EntityVersion           = "Version"
	EntityHumanUser         = "HumanUser"
	EntityTransitionConfig  = "TransitionConfig"
	EntityTechFixRecord     = "TechFixRecord"
	EntityPublishedFile     = "PublishedFile"
	EntityPublishedFileType = "PublishedFileType"
)

// Field codes used across entity types.
const (
	FieldID      = "id"
	FieldType    = "type"
	FieldCode    = "code"
	FieldName    = "name"
	FieldProject = "project"
	FieldStatus  = "sg_status_list"
)

// Task field codes.
const (
	FieldTaskName            = "content"
	FieldTaskStep            = "step"
	FieldTaskLink            = "entity"
	FieldTaskSplitType       = "sg_split_type"
	FieldTaskTeamLead        = "sg_team_lead"
	FieldTaskSupervisor      = "sg_supervisor"
	FieldTaskInternalVersion = "sg_internal_version"
	FieldTaskClientVersion   = "sg_client_version"
	FieldTaskStartDate       = "start_date"
	FieldTaskDueDate         = "due_date"
)

// Version field codes.
const (
	FieldVersionTask = "sg_task"
	FieldVersionLink = "entity"
)

// HumanUser field codes.
const (
	FieldUserLogin = "login"
	FieldUserRole  = "permission_rule_set"
)

// Shot/Asset field codes.
const (
	FieldShotCutDuration = "sg_cut_duration"
	FieldSceneCode       = "sg_scene_code"
	FieldAssetType       = "sg_asset_type"
	FieldAssetSlot       = "sg_slot"
)

// TransitionConfig field codes. Work-area template fields are addressed by
// the names carried in the file config itself, so only the fixed fields are
// listed here.
const (
	FieldConfigEntityType = "sg_entity_type"
	FieldConfigStep       = "sg_path_sheet_name"
	FieldConfigTaskName   = "sg_task_name"
	FieldConfigStatusMap  = "sg_status_config"
	FieldConfigFileMap    = "sg_file_config"
	FieldConfigQCProcess  = "sg_qc_process"
)

// TechFixRecord field codes.
const (
	FieldTechfixTask = "sg_task"
	FieldTechfixFrom = "sg_from_task"
)

// PublishedFile field codes.
const (
	FieldPublishName         = "name"
	FieldPublishVersionNum   = "version_number"
	FieldPublishType         = "published_file_type"
	FieldPublishEntity       = "entity"
	FieldPublishTask         = "task"
	FieldPublishVersion      = "version"
	FieldPublishAbsolutePath = "sg_absolute_path"
)
