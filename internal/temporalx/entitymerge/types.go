package entitymerge

const (
	WorkflowFinishMerge   = "finish-entity-merging"
	WorkflowFinishUnmerge = "finish-entity-unmerging"

	ActivitySweepResiduals  = "entity-merge-sweep-residuals"
	ActivityRetireSecondary = "entity-merge-retire-secondary"
	ActivityMarkDone        = "entity-merge-mark-done"
	ActivityMarkError       = "entity-merge-mark-error"
	ActivitySearchSync      = "entity-merge-search-sync"
	ActivityNotify          = "entity-merge-notify"
)
