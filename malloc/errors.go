package malloc

import "errors"

// Precondition and capacity failures, returned by arena operations.
// State is left unmodified whenever one of these is returned.
var ErrorBadSettings = errors.New("malloc.badsettings")
var ErrorArenaReleased = errors.New("malloc.arenareleased")
var ErrorPoolTableFull = errors.New("malloc.pooltablefull")
var ErrorBadPoolName = errors.New("malloc.badpoolname")
var ErrorDupPoolName = errors.New("malloc.duppoolname")
var ErrorBadPoolBase = errors.New("malloc.badpoolbase")
var ErrorBadPoolSize = errors.New("malloc.badpoolsize")
var ErrorBadCategory = errors.New("malloc.badcategory")
var ErrorPoolOverlap = errors.New("malloc.pooloverlap")
var ErrorExceedsArena = errors.New("malloc.exceedsarena")
var ErrorUnknownPool = errors.New("malloc.unknownpool")
var ErrorBadAllocSize = errors.New("malloc.badallocsize")
var ErrorBadOwner = errors.New("malloc.badowner")
var ErrorPoolExhausted = errors.New("malloc.poolexhausted")
var ErrorAllocTableFull = errors.New("malloc.alloctablefull")

// State violations, freeing or verifying the wrong thing.
var ErrorUnknownAlloc = errors.New("malloc.unknownalloc")
var ErrorNotAllocated = errors.New("malloc.notallocated")
var ErrorOwnerMismatch = errors.New("malloc.ownermismatch")
var ErrorSizeMismatch = errors.New("malloc.sizemismatch")

// Audit failures, returned by the check_* entry points. These gate
// a release, callers treat them as fatal to the build, not to the
// process.
var ErrorLeakConfirmed = errors.New("malloc.leakconfirmed")
var ErrorLeakNotConfirmed = errors.New("malloc.leaknotconfirmed")
var ErrorUsageCritical = errors.New("malloc.usagecritical")
var ErrorNotEnoughSamples = errors.New("malloc.notenoughsamples")

// Invariant categories, returned by Validate(). The first violated
// invariant wins.
var ErrorBoundsViolation = errors.New("malloc.boundsviolation")
var ErrorContainViolation = errors.New("malloc.containmentviolation")
var ErrorStateViolation = errors.New("malloc.stateviolation")
var ErrorAccountingViolation = errors.New("malloc.accountingviolation")
var ErrorHistoryViolation = errors.New("malloc.historyviolation")
var ErrorSnapshotViolation = errors.New("malloc.snapshotviolation")
